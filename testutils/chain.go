package testutils

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/evmstack/chaindata/eth"
)

const genesisTime = 1_700_000_000

// TestChainConfig returns a chain configuration with every fork active from
// genesis, so withdrawal and request gating is exercised by default.
func TestChainConfig() *params.ChainConfig {
	zero := uint64(0)
	return &params.ChainConfig{
		ChainID:                 big.NewInt(1337),
		HomesteadBlock:          big.NewInt(0),
		EIP150Block:             big.NewInt(0),
		EIP155Block:             big.NewInt(0),
		EIP158Block:             big.NewInt(0),
		ByzantiumBlock:          big.NewInt(0),
		ConstantinopleBlock:     big.NewInt(0),
		PetersburgBlock:         big.NewInt(0),
		IstanbulBlock:           big.NewInt(0),
		BerlinBlock:             big.NewInt(0),
		LondonBlock:             big.NewInt(0),
		MergeNetsplitBlock:      big.NewInt(0),
		TerminalTotalDifficulty: big.NewInt(0),
		ShanghaiTime:            &zero,
		CancunTime:              &zero,
		PragueTime:              &zero,
		BlobScheduleConfig:      params.DefaultBlobSchedule,
	}
}

// worldState is the generator's running flat state, snapshotted per block so
// forks can branch off any height.
type worldState struct {
	accounts map[common.Address]*eth.Account
	storage  map[common.Address]map[common.Hash]common.Hash
}

func (w worldState) clone() worldState {
	cpy := worldState{
		accounts: make(map[common.Address]*eth.Account, len(w.accounts)),
		storage:  make(map[common.Address]map[common.Hash]common.Hash, len(w.storage)),
	}
	for addr, acct := range w.accounts {
		cpy.accounts[addr] = acct.Copy()
	}
	for addr, slots := range w.storage {
		s := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			s[k] = v
		}
		cpy.storage[addr] = s
	}
	return cpy
}

// ChainGen produces a deterministic chain of executed blocks: signed
// transactions from one funded sender, receipts in storage-normalized form,
// withdrawals and requests where the forks allow them, and per-block state
// output with revert records. Block i of two generators with the same salt is
// identical; different salts fork the chain.
type ChainGen struct {
	Config    *params.ChainConfig
	Sender    common.Address
	Contract  common.Address
	Recipient common.Address

	key    *ecdsa.PrivateKey
	signer types.Signer
	salt   uint64
	blocks []*eth.ExecutedBlock
	states []worldState
}

// NewChainGen creates a generator with its genesis block already built.
func NewChainGen() *ChainGen {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte("chaindata test key")))
	if err != nil {
		panic(err)
	}
	cfg := TestChainConfig()
	g := &ChainGen{
		Config:    cfg,
		Sender:    crypto.PubkeyToAddress(key.PublicKey),
		Contract:  common.HexToAddress("0xc0ffee0000000000000000000000000000000001"),
		Recipient: common.HexToAddress("0x1ec1dead0000000000000000000000000000beef"),
		key:       key,
		signer:    types.LatestSigner(cfg),
	}
	g.buildGenesis()
	return g
}

func (g *ChainGen) buildGenesis() {
	code := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}
	codeHash := crypto.Keccak256Hash(code)
	slot := common.HexToHash("0x01")
	value := common.HexToHash("0xaa")

	st := worldState{
		accounts: map[common.Address]*eth.Account{
			g.Sender:   {Nonce: 0, Balance: new(big.Int).Mul(big.NewInt(10), big.NewInt(params.Ether)), CodeHash: types.EmptyCodeHash},
			g.Contract: {Nonce: 1, Balance: big.NewInt(0), CodeHash: codeHash},
		},
		storage: map[common.Address]map[common.Hash]common.Hash{
			g.Contract: {slot: value},
		},
	}

	header := &types.Header{
		Number:      big.NewInt(0),
		UncleHash:   types.EmptyUncleHash,
		Root:        crypto.Keccak256Hash([]byte("genesis state")),
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  big.NewInt(0),
		GasLimit:    30_000_000,
		Time:        genesisTime,
		BaseFee:     big.NewInt(params.InitialBaseFee),
	}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{})

	output := &eth.ExecutionOutput{
		Accounts: map[common.Address]*eth.Account{},
		Storage:  map[common.Address]map[common.Hash]common.Hash{g.Contract: {slot: value}},
		Code:     map[common.Hash][]byte{codeHash: code},
		Reverts: []eth.AccountChange{
			{Address: g.Sender},
			{Address: g.Contract},
		},
	}
	for addr, acct := range st.accounts {
		output.Accounts[addr] = acct.Copy()
	}

	g.blocks = []*eth.ExecutedBlock{{
		Block:    block,
		Senders:  []common.Address{},
		Receipts: types.Receipts{},
		Output:   output,
	}}
	g.states = []worldState{st}
}

// Tip returns the generator's highest block.
func (g *ChainGen) Tip() *eth.ExecutedBlock {
	return g.blocks[len(g.blocks)-1]
}

// Blocks returns the blocks in [from, to], by number.
func (g *ChainGen) Blocks(from, to uint64) []*eth.ExecutedBlock {
	out := make([]*eth.ExecutedBlock, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, g.blocks[n])
	}
	return out
}

// Block returns the block at the given height.
func (g *ChainGen) Block(number uint64) *eth.ExecutedBlock {
	return g.blocks[number]
}

// TD returns the total difficulty up to and including the given height.
func (g *ChainGen) TD(number uint64) *big.Int {
	td := new(big.Int)
	for n := uint64(0); n <= number; n++ {
		td.Add(td, g.blocks[n].Block.Difficulty())
	}
	return td
}

// Fork branches a new generator off the block at parentNumber. A non-zero
// salt makes the forked blocks differ from the originals at every height.
func (g *ChainGen) Fork(parentNumber uint64, salt uint64) *ChainGen {
	fork := &ChainGen{
		Config:    g.Config,
		Sender:    g.Sender,
		Contract:  g.Contract,
		Recipient: g.Recipient,
		key:       g.key,
		signer:    g.signer,
		salt:      salt,
	}
	fork.blocks = append(fork.blocks, g.blocks[:parentNumber+1]...)
	for _, st := range g.states[:parentNumber+1] {
		fork.states = append(fork.states, st.clone())
	}
	return fork
}

// Next extends the chain by one block carrying txCount value transfers and
// returns it.
func (g *ChainGen) Next(txCount int) *eth.ExecutedBlock {
	parent := g.Tip()
	number := parent.Number() + 1
	time := parent.Block.Time() + 12
	st := g.states[len(g.states)-1].clone()

	pre := map[common.Address]*eth.Account{
		g.Sender:    st.accounts[g.Sender].Copy(),
		g.Recipient: st.accounts[g.Recipient].Copy(),
	}

	var txs types.Transactions
	senders := make([]common.Address, 0, txCount)
	for i := 0; i < txCount; i++ {
		nonce := st.accounts[g.Sender].Nonce
		value := big.NewInt(int64(1000 + g.salt*1_000_000 + nonce))
		tx, err := types.SignNewTx(g.key, g.signer, &types.DynamicFeeTx{
			ChainID:   g.Config.ChainID,
			Nonce:     nonce,
			GasTipCap: big.NewInt(params.GWei),
			GasFeeCap: big.NewInt(2 * params.GWei),
			Gas:       params.TxGas,
			To:        &g.Recipient,
			Value:     value,
		})
		if err != nil {
			panic(fmt.Sprintf("sign tx: %v", err))
		}
		txs = append(txs, tx)
		senders = append(senders, g.Sender)

		st.accounts[g.Sender].Nonce++
		st.accounts[g.Sender].Balance.Sub(st.accounts[g.Sender].Balance, value)
		recipient := st.accounts[g.Recipient]
		if recipient == nil {
			recipient = &eth.Account{Balance: new(big.Int), CodeHash: types.EmptyCodeHash}
			st.accounts[g.Recipient] = recipient
		}
		recipient.Balance.Add(recipient.Balance, value)
	}

	receipts := make(types.Receipts, txCount)
	for i := range receipts {
		receipts[i] = &types.Receipt{
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: params.TxGas * uint64(i+1),
		}
	}
	receipts = normalizeReceipts(receipts)

	slot := common.BigToHash(new(big.Int).SetUint64(number))
	slotBefore := st.storage[g.Contract][slot]
	slotValue := crypto.Keccak256Hash(binary.BigEndian.AppendUint64(binary.BigEndian.AppendUint64(nil, number), g.salt))
	st.storage[g.Contract][slot] = slotValue

	var withdrawals types.Withdrawals
	if g.Config.IsShanghai(new(big.Int).SetUint64(number), time) {
		withdrawals = types.Withdrawals{{
			Index:     number * 10,
			Validator: 7,
			Address:   g.Recipient,
			Amount:    number,
		}}
	}
	var requests [][]byte
	if g.Config.IsPrague(new(big.Int).SetUint64(number), time) {
		requests = [][]byte{binary.BigEndian.AppendUint64([]byte{0x00}, number)}
	}

	header := &types.Header{
		ParentHash:  parent.Hash(),
		UncleHash:   types.EmptyUncleHash,
		Number:      new(big.Int).SetUint64(number),
		Root:        crypto.Keccak256Hash(binary.BigEndian.AppendUint64([]byte("state"), number), binary.BigEndian.AppendUint64(nil, g.salt)),
		TxHash:      types.DeriveSha(txs, trie.NewStackTrie(nil)),
		ReceiptHash: types.DeriveSha(receipts, trie.NewStackTrie(nil)),
		Difficulty:  big.NewInt(int64(100 + number)),
		GasLimit:    30_000_000,
		GasUsed:     params.TxGas * uint64(txCount),
		Time:        time,
		Extra:       binary.BigEndian.AppendUint64(nil, g.salt),
		BaseFee:     big.NewInt(params.InitialBaseFee),
	}
	if withdrawals != nil {
		h := types.DeriveSha(withdrawals, trie.NewStackTrie(nil))
		header.WithdrawalsHash = &h
	}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs, Withdrawals: withdrawals})

	output := &eth.ExecutionOutput{
		Accounts: map[common.Address]*eth.Account{},
		Storage: map[common.Address]map[common.Hash]common.Hash{
			g.Contract: {slot: slotValue},
		},
		Code: map[common.Hash][]byte{},
		Reverts: []eth.AccountChange{
			{Address: g.Contract, Before: st.accounts[g.Contract].Copy(), Storage: []eth.StorageChange{{Slot: slot, Before: slotBefore}}},
		},
	}
	if txCount > 0 {
		output.Accounts[g.Sender] = st.accounts[g.Sender].Copy()
		output.Accounts[g.Recipient] = st.accounts[g.Recipient].Copy()
		output.Reverts = append(output.Reverts,
			eth.AccountChange{Address: g.Sender, Before: pre[g.Sender]},
			eth.AccountChange{Address: g.Recipient, Before: pre[g.Recipient]},
		)
	}

	executed := &eth.ExecutedBlock{
		Block:    block,
		Senders:  senders,
		Receipts: receipts,
		Requests: requests,
		Output:   output,
	}
	g.blocks = append(g.blocks, executed)
	g.states = append(g.states, st)
	return executed
}

// Extend generates n blocks of txsPerBlock transactions each and returns
// them.
func (g *ChainGen) Extend(n int, txsPerBlock int) []*eth.ExecutedBlock {
	out := make([]*eth.ExecutedBlock, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next(txsPerBlock))
	}
	return out
}

// normalizeReceipts roundtrips receipts through their storage encoding so
// generated receipts compare equal to receipts read back from the store.
func normalizeReceipts(receipts types.Receipts) types.Receipts {
	stored := make([]*types.ReceiptForStorage, len(receipts))
	for i, r := range receipts {
		stored[i] = (*types.ReceiptForStorage)(r)
	}
	data, err := rlp.EncodeToBytes(stored)
	if err != nil {
		panic(err)
	}
	var decoded []*types.ReceiptForStorage
	if err := rlp.DecodeBytes(data, &decoded); err != nil {
		panic(err)
	}
	out := make(types.Receipts, len(decoded))
	for i, r := range decoded {
		out[i] = (*types.Receipt)(r)
	}
	return out
}
