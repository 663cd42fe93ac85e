package auth

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"crypto/subtle"
)

// Structs

// FileAuthenticator contains file based authentication
// information, the list of users sorted by name.
type FileAuthenticator struct {
	Users []User
}

// User holds name and password from one line from users file.
type User struct {
	Name     string
	Password string
}

// Functions

// NewFileAuthenticator takes in a file name and a separator,
// reads in specified file and parses it line by line as
// username - password elements separated by the separator.
// Empty lines and lines starting with '#' are skipped.
func NewFileAuthenticator(file string, sep string) (*FileAuthenticator, error) {

	if sep == "" {
		return nil, fmt.Errorf("[auth.NewFileAuthenticator] Separator must not be empty")
	}

	users := make([]User, 0, 50)

	// Open file with authentication information.
	handle, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("[auth.NewFileAuthenticator] Could not open supplied authentication file: %v", err)
	}
	defer handle.Close()

	scanner := bufio.NewScanner(handle)

	lineNum := 0
	for scanner.Scan() {

		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if (line == "") || strings.HasPrefix(line, "#") {
			continue
		}

		// Split read line based on separator defined in config file.
		name, password, found := strings.Cut(line, sep)
		if !found || (name == "") {
			return nil, fmt.Errorf("[auth.NewFileAuthenticator] Line %d of authentication file is not of form 'user%spassword'", lineNum, sep)
		}

		users = append(users, User{
			Name:     name,
			Password: password,
		})
	}

	// If the scanner ended with an error, report it.
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[auth.NewFileAuthenticator] Experienced error while scanning authentication file: %v", err)
	}

	// Sort users list to search it efficiently later on.
	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})

	for i := 1; i < len(users); i++ {

		if users[i].Name == users[i-1].Name {
			return nil, fmt.Errorf("[auth.NewFileAuthenticator] User '%s' appears more than once in authentication file", users[i].Name)
		}
	}

	return &FileAuthenticator{
		Users: users,
	}, nil
}

// AuthenticatePlain performs the actual authentication
// process by taking supplied credentials and attempting
// to find a matching entry the in-memory list taken from
// the authentication file.
func (f *FileAuthenticator) AuthenticatePlain(username string, password string, clientAddr string) error {

	// Search in user list for user matching supplied name.
	i := sort.Search(len(f.Users), func(i int) bool {
		return f.Users[i].Name >= username
	})

	// If that user does not exist, throw an error.
	if !((i < len(f.Users)) && (f.Users[i].Name == username)) {
		return fmt.Errorf("username not found in list of users")
	}

	// Check if passwords match.
	if subtle.ConstantTimeCompare([]byte(f.Users[i].Password), []byte(password)) != 1 {
		return fmt.Errorf("passwords did not match")
	}

	return nil
}
