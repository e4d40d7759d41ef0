package auth

import "golang.org/x/crypto/bcrypt"

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyChannelPassword checks a supplied password against a channel's hash.
// An empty hash means the channel is open and any input passes.
func VerifyChannelPassword(hash, password string) bool {
	if hash == "" {
		return true
	}
	return CheckPassword(hash, password)
}
