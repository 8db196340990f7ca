package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana/shortvec"
)

// versionPrefix marks a versioned (v0) message. Only legacy messages are
// supported.
const versionPrefix = 0x80

// Marshal encodes the transaction in the legacy wire format: the signatures,
// followed by the message.
func (t Transaction) Marshal() []byte {
	var b bytes.Buffer

	writeLen(&b, len(t.Signatures))
	for _, s := range t.Signatures {
		b.Write(s[:])
	}
	b.Write(t.Message.Marshal())

	return b.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := &wireReader{buf: bytes.NewBuffer(b)}

	n, err := r.len("signature count")
	if err != nil {
		return err
	}

	t.Signatures = make([]Signature, n)
	for i := range t.Signatures {
		if err := r.fill(t.Signatures[i][:], "signature"); err != nil {
			return errors.Wrapf(err, "signature %d", i)
		}
	}

	return t.Message.Unmarshal(r.buf.Bytes())
}

// Marshal encodes the message in the legacy wire format. These are the bytes
// that signers sign.
func (m Message) Marshal() []byte {
	var b bytes.Buffer

	b.Write([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	writeLen(&b, len(m.Accounts))
	for _, a := range m.Accounts {
		b.Write(a)
	}

	b.Write(m.RecentBlockhash[:])

	writeLen(&b, len(m.Instructions))
	for _, i := range m.Instructions {
		b.WriteByte(i.ProgramIndex)
		writeLen(&b, len(i.Accounts))
		b.Write(i.Accounts)
		writeLen(&b, len(i.Data))
		b.Write(i.Data)
	}

	return b.Bytes()
}

func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&versionPrefix != 0 {
		return errors.New("versioned messages not supported")
	}

	r := &wireReader{buf: bytes.NewBuffer(b)}

	var header [3]byte
	if err := r.fill(header[:], "header"); err != nil {
		return err
	}
	m.Header = Header{
		NumSignatures:     header[0],
		NumReadonlySigned: header[1],
		NumReadOnly:       header[2],
	}

	n, err := r.len("account count")
	if err != nil {
		return err
	}
	m.Accounts = make([]ed25519.PublicKey, n)
	for i := range m.Accounts {
		m.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		if err := r.fill(m.Accounts[i], "account"); err != nil {
			return errors.Wrapf(err, "account %d", i)
		}
	}

	if err := r.fill(m.RecentBlockhash[:], "recent blockhash"); err != nil {
		return err
	}

	if n, err = r.len("instruction count"); err != nil {
		return err
	}
	m.Instructions = make([]CompiledInstruction, n)
	for i := range m.Instructions {
		if m.Instructions[i], err = r.instruction(len(m.Accounts)); err != nil {
			return errors.Wrapf(err, "instruction %d", i)
		}
	}

	if r.buf.Len() > 0 {
		return errors.Errorf("%d trailing bytes after message", r.buf.Len())
	}
	if int(m.Header.NumSignatures) > len(m.Accounts) {
		return errors.Errorf("header requires %d signers but message has %d accounts", m.Header.NumSignatures, len(m.Accounts))
	}
	return nil
}

func writeLen(b *bytes.Buffer, n int) {
	_, _ = shortvec.EncodeLen(b, n)
}

type wireReader struct {
	buf *bytes.Buffer
}

func (r *wireReader) len(what string) (int, error) {
	n, err := shortvec.DecodeLen(r.buf)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", what)
	}
	return n, nil
}

func (r *wireReader) fill(dst []byte, what string) error {
	if _, err := io.ReadFull(r.buf, dst); err != nil {
		return errors.Wrapf(err, "failed to read %s", what)
	}
	return nil
}

func (r *wireReader) lenPrefixed(what string) ([]byte, error) {
	n, err := r.len(what + " length")
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	return b, r.fill(b, what)
}

// instruction reads a compiled instruction, checking its indices against the
// number of accounts in the message.
func (r *wireReader) instruction(numAccounts int) (c CompiledInstruction, err error) {
	var program [1]byte
	if err = r.fill(program[:], "program index"); err != nil {
		return c, err
	}
	c.ProgramIndex = program[0]
	if int(c.ProgramIndex) >= numAccounts {
		return c, errors.Errorf("program index out of range: %d", c.ProgramIndex)
	}

	if c.Accounts, err = r.lenPrefixed("account indices"); err != nil {
		return c, err
	}
	for _, index := range c.Accounts {
		if int(index) >= numAccounts {
			return c, errors.Errorf("account index out of range: %d", index)
		}
	}

	c.Data, err = r.lenPrefixed("data")
	return c, err
}
