package api

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/util"
)

// A TokenDecoder resolves an API key to the user presenting it. An
// invalid token resolves to nil with no error. An error means the
// lookup itself failed and the token's status is unknown.
type TokenDecoder interface {
	TokenDecode(email, token string) (*registry.User, error)
}

// NewNobodyDecoder returns a TokenDecoder that accepts every token as
// a system admin. Use in tests only.
func NewNobodyDecoder() TokenDecoder {
	return new(nobodyDecoder)
}

type nobodyDecoder struct{}

func (nobodyDecoder) TokenDecode(email, token string) (*registry.User, error) {
	return &registry.User{
		Email:                 email,
		InstitutionIdentifier: constants.APTrustID,
		Role:                  constants.RoleAdmin,
	}, nil
}

// A ListDecoder is backed by a predefined list of users read from r.
// Each line has the form:
//
//	<email>  <institution_identifier>  <role>  <token>
//
// Fields are delineated by whitespace, so none of them may contain
// spaces. The role is one of admin, institutional_admin or
// institutional_user. Empty lines and lines beginning with '#' are
// skipped, as are lines with an unknown role.
func NewListDecoder(r io.Reader) (TokenDecoder, error) {
	users, err := parseListFile(r)
	if err != nil {
		return nil, err
	}
	sort.Sort(byToken(users))
	return listDecoder{users}, nil
}

// NewListDecoderFile reads the contents of the given file into a
// ListDecoder.
func NewListDecoderFile(fname string) (TokenDecoder, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewListDecoder(f)
}

// NewListDecoderString passes the given string into a ListDecoder.
func NewListDecoderString(data string) (TokenDecoder, error) {
	return NewListDecoder(strings.NewReader(data))
}

func parseListFile(r io.Reader) ([]userEntry, error) {
	var result []userEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pieces := strings.Fields(scanner.Text())
		if len(pieces) == 0 || pieces[0][0] == '#' {
			continue
		}
		if len(pieces) != 4 {
			continue
		}
		if !util.StringListContains(constants.Roles, pieces[2]) {
			continue
		}
		result = append(result, userEntry{
			email:       pieces[0],
			institution: pieces[1],
			role:        pieces[2],
			token:       pieces[3],
		})
	}
	return result, scanner.Err()
}

type userEntry struct {
	email       string
	institution string
	role        string
	token       string
}

type byToken []userEntry

func (ue byToken) Len() int           { return len(ue) }
func (ue byToken) Less(i, j int) bool { return ue[i].token < ue[j].token }
func (ue byToken) Swap(i, j int)      { ue[i], ue[j] = ue[j], ue[i] }

type listDecoder struct {
	data []userEntry
}

// TokenDecode requires both the token and the email header to match
// the entry, so a leaked token alone is not a usable credential.
func (ld listDecoder) TokenDecode(email, token string) (*registry.User, error) {
	users := ld.data
	i := sort.Search(len(users), func(i int) bool { return users[i].token >= token })
	if i < len(users) && users[i].token == token && users[i].email == email {
		return &registry.User{
			Email:                 users[i].email,
			InstitutionIdentifier: users[i].institution,
			Role:                  users[i].role,
		}, nil
	}
	return nil, nil
}
