package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-thread/pharos/api"
	"github.com/simple-thread/pharos/constants"
)

const tokenFile = `
# comment lines and blanks are skipped
admin@aptrust.org   aptrust.org   admin                 tokenA
admin@example.edu   example.edu   institutional_admin   tokenB
user@example.edu    example.edu   institutional_user    tokenC
broken-line-with-three fields only
odd@example.edu     example.edu   not_a_role            tokenD
`

func TestListDecoder(t *testing.T) {
	decoder, err := api.NewListDecoderString(tokenFile)
	require.Nil(t, err)

	user, err := decoder.TokenDecode("admin@example.edu", "tokenB")
	require.Nil(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "example.edu", user.InstitutionIdentifier)
	assert.Equal(t, constants.RoleInstAdmin, user.Role)

	// The token alone is not enough.
	user, err = decoder.TokenDecode("someone@else.edu", "tokenB")
	require.Nil(t, err)
	assert.Nil(t, user)

	// Unknown token.
	user, err = decoder.TokenDecode("admin@example.edu", "tokenZ")
	require.Nil(t, err)
	assert.Nil(t, user)

	// Lines with a bad role are skipped entirely.
	user, err = decoder.TokenDecode("odd@example.edu", "tokenD")
	require.Nil(t, err)
	assert.Nil(t, user)
}

func TestNobodyDecoder(t *testing.T) {
	decoder := api.NewNobodyDecoder()
	user, err := decoder.TokenDecode("anyone@anywhere.org", "whatever")
	require.Nil(t, err)
	require.NotNil(t, user)
	assert.Equal(t, constants.RoleAdmin, user.Role)
}
