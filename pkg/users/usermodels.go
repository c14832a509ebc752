// FILE: users/models.go

package users

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Gender is the binary gender reported by the randomuser API.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender validates a raw gender string.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale:
		return g, nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}

// Images holds the three picture sizes. A nil field means the API sent an
// empty or malformed URL for that size.
type Images struct {
	Thumbnail *url.URL
	Medium    *url.URL
	Large     *url.URL
}

// User is a single fetched profile. ID is the API's login.uuid.
type User struct {
	ID          string
	DisplayName string
	Gender      Gender
	Images      Images
	Phone       string
	Email       string
}

// userJSON is the wire form handed to the HTTP API and event consumers.
type userJSON struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Gender      Gender     `json:"gender"`
	Images      imagesJSON `json:"images"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
}

type imagesJSON struct {
	Thumbnail string `json:"thumbnail,omitempty"`
	Medium    string `json:"medium,omitempty"`
	Large     string `json:"large,omitempty"`
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

// MarshalJSON flattens the picture URLs into strings; absent sizes are omitted.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(userJSON{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Gender:      u.Gender,
		Images: imagesJSON{
			Thumbnail: urlString(u.Images.Thumbnail),
			Medium:    urlString(u.Images.Medium),
			Large:     urlString(u.Images.Large),
		},
		Phone: u.Phone,
		Email: u.Email,
	})
}

// FilterByGender is the male/female projection: a pure filter that keeps
// the order of the input.
func FilterByGender(list []User, g Gender) []User {
	out := make([]User, 0, len(list))
	for _, u := range list {
		if u.Gender == g {
			out = append(out, u)
		}
	}
	return out
}

// IDs returns the ids of list in order.
func IDs(list []User) []string {
	ids := make([]string, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
	}
	return ids
}
