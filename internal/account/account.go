package account

// Account holds the credentials produced by a key-creation call. Records
// live in memory for the duration of a single run; the only on-disk trace is
// the raw key info dump written separately for operator recovery.
type Account struct {
	Name     string
	Address  string
	Mnemonic string
	Password string
}

// Cache maps account names to their records for a single run. One entry per
// name, last write wins.
type Cache struct {
	accounts map[string]Account
}

func NewCache() *Cache {
	return &Cache{accounts: make(map[string]Account)}
}

func (c *Cache) Put(acc Account) {
	c.accounts[acc.Name] = acc
}

func (c *Cache) Get(name string) (Account, bool) {
	acc, ok := c.accounts[name]
	return acc, ok
}

func (c *Cache) Len() int {
	return len(c.accounts)
}
