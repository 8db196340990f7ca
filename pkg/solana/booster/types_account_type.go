package booster

type AccountType uint8

const (
	AccountTypeUnknown AccountType = iota
	AccountTypeStoreConfig
	AccountTypeBooster
)

func (t AccountType) discriminator() []byte {
	return []byte{byte(t)}
}
