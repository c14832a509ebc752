package users

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrParse marks a response body whose shape does not match the randomuser
// envelope.
var ErrParse = errors.New("response parsing error")

// Decode parses a randomuser response body of the form {"results": [...]}
// into users, keeping the order of the results array.
//
// A record without login.uuid or with an unknown gender fails the whole body.
// Picture URLs are optional per field: a missing or malformed URL leaves that
// size nil and the record is still accepted.
func Decode(data []byte) ([]User, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrParse)
	}
	results := gjson.GetBytes(data, "results")
	if !results.Exists() {
		return nil, fmt.Errorf("%w: missing results", ErrParse)
	}
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: results is not an array", ErrParse)
	}

	var (
		list    []User
		failure error
	)
	results.ForEach(func(key, record gjson.Result) bool {
		u, err := decodeRecord(record)
		if err != nil {
			failure = fmt.Errorf("%w: record %d: %v", ErrParse, key.Int(), err)
			return false
		}
		list = append(list, u)
		return true
	})
	if failure != nil {
		return nil, failure
	}
	if list == nil {
		list = []User{}
	}
	return list, nil
}

func decodeRecord(record gjson.Result) (User, error) {
	if !record.IsObject() {
		return User{}, errors.New("record is not an object")
	}
	id := record.Get("login.uuid")
	if id.Type != gjson.String || id.String() == "" {
		return User{}, errors.New("missing login.uuid")
	}
	gender, err := ParseGender(record.Get("gender").String())
	if err != nil {
		return User{}, err
	}
	return User{
		ID:          id.String(),
		DisplayName: displayName(record.Get("name")),
		Gender:      gender,
		Images: Images{
			Thumbnail: parseImageURL(record.Get("picture.thumbnail").String()),
			Medium:    parseImageURL(record.Get("picture.medium").String()),
			Large:     parseImageURL(record.Get("picture.large").String()),
		},
		Phone: record.Get("phone").String(),
		Email: record.Get("email").String(),
	}, nil
}

// displayName joins title, first and last name, skipping empty parts.
func displayName(name gjson.Result) string {
	parts := make([]string, 0, 3)
	for _, field := range []string{"title", "first", "last"} {
		if p := strings.TrimSpace(name.Get(field).String()); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// parseImageURL returns nil unless raw is an absolute URL with a host.
func parseImageURL(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}
