package handlers

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPersonalSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)
	message := LoginMessage(address.Hex(), "abcd", 1700000000)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)

	// both 0/1 and 27/28 recovery ids are accepted
	assert.NoError(t, VerifyPersonalSignature(address, message, hexutil.Encode(sig)))
	sig[crypto.RecoveryIDOffset] += 27
	assert.NoError(t, VerifyPersonalSignature(address, message, hexutil.Encode(sig)))

	assert.Error(t, VerifyPersonalSignature(address, message+"x", hexutil.Encode(sig)))
	assert.Error(t, VerifyPersonalSignature(address, message, "0x1234"))
	assert.Error(t, VerifyPersonalSignature(address, message, "zz"))

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	assert.Error(t, VerifyPersonalSignature(crypto.PubkeyToAddress(other.PublicKey), message, hexutil.Encode(sig)))
}

func TestTokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour, "x")
	assert.Error(t, err)

	tokens, err := NewTokenIssuer("secret", time.Hour, "private-lending-ingress")
	require.NoError(t, err)
	token, err := tokens.Issue("0xabc", RoleAdmin)
	require.NoError(t, err)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", claims.UserAddress)
	assert.Equal(t, RoleAdmin, claims.Role)

	// a token of the other node is rejected
	core, err := NewTokenIssuer("secret", time.Hour, "private-lending-lending-core")
	require.NoError(t, err)
	_, err = core.Validate(token)
	assert.Error(t, err)

	wrongKey, err := NewTokenIssuer("other", time.Hour, "private-lending-ingress")
	require.NoError(t, err)
	_, err = wrongKey.Validate(token)
	assert.Error(t, err)

	expired, err := NewTokenIssuer("secret", time.Minute, "private-lending-ingress")
	require.NoError(t, err)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue("0xabc", RoleUser)
	require.NoError(t, err)
	_, err = tokens.Validate(old)
	assert.Error(t, err)
}
