package mint

// Token is an entry of the verified list.
type Token struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Mint   string `json:"mint"`
}

// Verified is the curated list of well-known Solana tokens. Verified tokens
// score lower risk and make up the "verified" discovery listing.
var Verified = []Token{
	{Symbol: "SOL", Name: "Wrapped SOL", Mint: WrappedSOL},
	{Symbol: "USDC", Name: "USD Coin", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
	{Symbol: "USDT", Name: "Tether USD", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"},
	{Symbol: "JUP", Name: "Jupiter", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"},
	{Symbol: "RAY", Name: "Raydium", Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"},
	{Symbol: "BONK", Name: "Bonk", Mint: Bonk},
	{Symbol: "WIF", Name: "dogwifhat", Mint: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"},
	{Symbol: "POPCAT", Name: "POPCAT", Mint: "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"},
	{Symbol: "BOME", Name: "BOOK OF MEME", Mint: "ukHH6c7mMyiWCf1b9pnWe25TSpkDDt3H5pQZgZ74J82"},
	{Symbol: "MEW", Name: "cat in a dogs world", Mint: "MEW1gQWJ3nEXg2qgERiKu7FAFj79PHvQVREQUzScPP5"},
	{Symbol: "MYRO", Name: "Myro", Mint: "HhJpBhRRn4g56VsyLuT8DL5Bv31HkXqsrahTTUCZeZg4"},
	{Symbol: "GOAT", Name: "Goatcoin", Mint: "GNHW5JetZmW85vAU35KyoDcYoSd3sNWtx5RPMTDJpump"},
	{Symbol: "WOJAK", Name: "Wojak (Solana)", Mint: "7oLWGMuGbBm9uwDmffSdxLE98YChFAH1UdY5XpKYLff8"},
}

var verifiedSet = func() map[string]bool {
	m := make(map[string]bool, len(Verified))
	for _, t := range Verified {
		m[t.Mint] = true
	}
	return m
}()

// IsVerified reports whether addr is on the verified list.
func IsVerified(addr string) bool { return verifiedSet[addr] }

// VerifiedMints returns the verified mint addresses in list order.
func VerifiedMints() []string {
	out := make([]string, len(Verified))
	for i, t := range Verified {
		out[i] = t.Mint
	}
	return out
}
