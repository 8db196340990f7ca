package accounts

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/binary"
	"github.com/code-payments/code-boost/pkg/solana/memory"
	"github.com/code-payments/code-boost/pkg/testutil"
)

var counterDiscriminator = []byte{9}

type counter struct {
	Address ed25519.PublicKey
	Owner   ed25519.PublicKey
	Value   uint64
}

func (c *counter) Marshal() []byte {
	return binary.Encode(counterDiscriminator, binary.Key(&c.Owner), binary.Uint64(&c.Value))
}

func (c *counter) Unmarshal(data []byte) error {
	return binary.Decode(data, counterDiscriminator, binary.Key(&c.Owner), binary.Uint64(&c.Value))
}

func (c *counter) SetAddress(address ed25519.PublicKey) {
	c.Address = address
}

func TestStore_FetchOne(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	store := NewStore(ledger)

	program, owner, address := testutil.GenerateSolanaKey(t), testutil.GenerateSolanaKey(t), testutil.GenerateSolanaKey(t)
	expected := &counter{Owner: owner, Value: 42}
	ledger.SetAccount(address, program, expected.Marshal())

	var actual counter
	require.NoError(t, store.FetchOne(ctx, address, &actual))
	assert.EqualValues(t, address, actual.Address)
	assert.EqualValues(t, owner, actual.Owner)
	assert.EqualValues(t, 42, actual.Value)

	err := store.FetchOne(ctx, testutil.GenerateSolanaKey(t), &actual)
	assert.Equal(t, ErrNotFound, err)

	malformed := testutil.GenerateSolanaKey(t)
	ledger.SetAccount(malformed, program, []byte{8, 1, 2, 3})
	err = store.FetchOne(ctx, malformed, &actual)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.True(t, errors.Is(err, binary.ErrDiscriminatorMismatch))
	var malformedErr *MalformedError
	require.True(t, errors.As(err, &malformedErr))
	assert.EqualValues(t, malformed, malformedErr.Address)

	ledger.SetAccount(malformed, program, counterDiscriminator)
	err = store.FetchOne(ctx, malformed, &actual)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.True(t, errors.Is(err, binary.ErrTruncated))

	induced := errors.New("connection reset")
	ledger.InduceErrorN(memory.MethodGetAccountInfo, induced, 1)
	err = store.FetchOne(ctx, address, &actual)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, induced))
}

func TestStore_FetchMany(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	store := NewStore(ledger)

	program, other := testutil.GenerateSolanaKey(t), testutil.GenerateSolanaKey(t)
	alice, bob := testutil.GenerateSolanaKey(t), testutil.GenerateSolanaKey(t)

	for i := 0; i < 3; i++ {
		record := &counter{Owner: alice, Value: uint64(i)}
		ledger.SetAccount(testutil.GenerateSolanaKey(t), program, record.Marshal())
	}
	ledger.SetAccount(testutil.GenerateSolanaKey(t), program, (&counter{Owner: bob, Value: 100}).Marshal())
	ledger.SetAccount(testutil.GenerateSolanaKey(t), other, (&counter{Owner: alice, Value: 200}).Marshal())

	records, err := FetchMany[counter](ctx, store, program)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	records, err = FetchMany[counter](ctx, store, program, solana.MemcmpFilter{Offset: 1, Bytes: alice})
	require.NoError(t, err)
	require.Len(t, records, 3)

	var total uint64
	for _, r := range records {
		assert.EqualValues(t, alice, r.Account.Owner)
		assert.EqualValues(t, r.Address, r.Account.Address)
		total += r.Account.Value
	}
	assert.EqualValues(t, 3, total)

	records, err = FetchMany[counter](ctx, store, testutil.GenerateSolanaKey(t))
	require.NoError(t, err)
	assert.Empty(t, records)

	// A single bad record fails the scan.
	ledger.SetAccount(testutil.GenerateSolanaKey(t), program, []byte{9, 1})
	_, err = FetchMany[counter](ctx, store, program)
	assert.True(t, errors.Is(err, ErrMalformed))

	ledger.InduceErrorN(memory.MethodGetProgramAccounts, errors.New("timeout"), 1)
	_, err = FetchMany[counter](ctx, store, program)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	store := NewStore(ledger, WithSnapshotBudget(1024))

	program, address := testutil.GenerateSolanaKey(t), testutil.GenerateSolanaKey(t)

	var record counter
	assert.Equal(t, ErrNotFound, store.Latest(address, &record))

	ledger.SetAccount(address, program, (&counter{Owner: program, Value: 1}).Marshal())
	require.NoError(t, store.FetchOne(ctx, address, &record))

	// Updates on the ledger aren't visible until the next fetch.
	ledger.SetAccount(address, program, (&counter{Owner: program, Value: 2}).Marshal())

	var latest counter
	require.NoError(t, store.Latest(address, &latest))
	assert.EqualValues(t, 1, latest.Value)
	assert.EqualValues(t, address, latest.Address)

	require.NoError(t, store.FetchOne(ctx, address, &record))
	require.NoError(t, store.Latest(address, &latest))
	assert.EqualValues(t, 2, latest.Value)

	store.Invalidate(address)
	assert.Equal(t, ErrNotFound, store.Latest(address, &latest))

	require.NoError(t, store.FetchOne(ctx, address, &record))
	ledger.DeleteAccount(address)
	assert.Equal(t, ErrNotFound, store.FetchOne(ctx, address, &record))
	assert.Equal(t, ErrNotFound, store.Latest(address, &latest))
}

func TestStore_Submit(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	store := NewStore(ledger)

	payer := testutil.GenerateSolanaKeypair(t)
	tx := newTransaction(t, ledger, payer)

	_, err := store.Submit(ctx, tx.Marshal())
	assert.Equal(t, ErrNotSigned, err)
	assert.Empty(t, ledger.Submitted())

	_, err = store.Submit(ctx, []byte{1, 2, 3})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTransport))
	assert.False(t, errors.Is(err, ErrRejected))

	sign(t, &tx, payer)

	// A header requiring more signers than there are slots is not signed,
	// even when every slot present is filled.
	underSigned := tx
	underSigned.Message.Header.NumSignatures = 2
	require.Len(t, underSigned.Signatures, 1)
	_, err = store.Submit(ctx, underSigned.Marshal())
	assert.Equal(t, ErrNotSigned, err)
	assert.Empty(t, ledger.Submitted())

	sig, err := store.Submit(ctx, tx.Marshal())
	require.NoError(t, err)
	assert.Equal(t, tx.Signature(), sig)
	require.Len(t, ledger.Submitted(), 1)

	// Duplicate submissions are refused by the node.
	_, err = store.Submit(ctx, tx.Marshal())
	assert.True(t, errors.Is(err, ErrRejected))
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	require.NotNil(t, rejected.TransactionError)
	assert.Equal(t, solana.TransactionErrorDuplicateSignature, rejected.TransactionError.ErrorKey())
}

func TestStore_SubmitRejected(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	store := NewStore(ledger)

	ledger.SetProcessor(func(_ *memory.Ledger, _ solana.Transaction) (*solana.TransactionError, error) {
		return solana.TransactionErrorFromInstructionError(&solana.InstructionError{
			Index: 0,
			Err:   solana.CustomError(6001),
		})
	}, true)

	payer := testutil.GenerateSolanaKeypair(t)
	tx := newTransaction(t, ledger, payer)
	sign(t, &tx, payer)

	sig, err := store.Submit(ctx, tx.Marshal())
	assert.Equal(t, tx.Signature(), sig)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.False(t, errors.Is(err, ErrTransport))

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	code, ok := rejected.CustomErrorCode()
	assert.True(t, ok)
	assert.Equal(t, 6001, code)

	var custom solana.CustomError
	require.True(t, errors.As(err, &custom))
	assert.EqualValues(t, 6001, custom)
}

func TestStore_SubmitTransport(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	store := NewStore(ledger)

	payer := testutil.GenerateSolanaKeypair(t)
	tx := newTransaction(t, ledger, payer)
	sign(t, &tx, payer)

	for _, induced := range []error{
		errors.New("connection reset"),
		&jsonrpc.RPCError{Code: 429, Message: "Too many requests"},
		&jsonrpc.RPCError{Code: 503, Message: "Service unavailable"},
		&jsonrpc.RPCError{Code: -32005, Message: "Node is unhealthy"},
	} {
		ledger.InduceErrorN(memory.MethodSendTransaction, induced, 1)

		_, err := store.Submit(ctx, tx.Marshal())
		assert.True(t, errors.Is(err, ErrTransport), induced.Error())
		assert.False(t, errors.Is(err, ErrRejected))
	}

	ledger.InduceErrorN(memory.MethodSendTransaction, &jsonrpc.RPCError{Code: -32602, Message: "invalid params"}, 1)
	_, err := store.Submit(ctx, tx.Marshal())
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, -32602, rejected.Code)
	assert.Equal(t, "invalid params", rejected.Message)
	assert.Nil(t, rejected.TransactionError)
	_, ok := rejected.CustomErrorCode()
	assert.False(t, ok)

	assert.Empty(t, ledger.Submitted())
}

func newTransaction(t *testing.T, ledger *memory.Ledger, payer ed25519.PrivateKey) solana.Transaction {
	blockhash, err := ledger.GetLatestBlockhash(context.Background())
	require.NoError(t, err)

	tx, err := solana.Compile(
		payer.Public().(ed25519.PublicKey),
		blockhash,
		solana.NewInstruction(testutil.GenerateSolanaKey(t), []byte{1}, solana.NewAccountMeta(payer.Public().(ed25519.PublicKey), true)),
	)
	require.NoError(t, err)
	return tx
}

func sign(t *testing.T, tx *solana.Transaction, signers ...ed25519.PrivateKey) {
	message := tx.Message.Marshal()
	for _, s := range signers {
		signed := false
		for i, required := range tx.Signers() {
			if required.Equal(s.Public()) {
				copy(tx.Signatures[i][:], ed25519.Sign(s, message))
				signed = true
			}
		}
		require.True(t, signed)
	}
}
