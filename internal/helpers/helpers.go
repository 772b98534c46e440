// SPDX-License-Identifier: AGPL-3.0-only
package helpers

import (
	"fmt"
	"strings"

	"github.com/fluffyriot/crossfeed/internal/models"
)

type SourceNetwork struct {
	Platform models.Platform
	Name     string
	Color    string
}

var AvailableSources = []SourceNetwork{
	{Platform: models.PlatformBluesky, Name: "Bluesky", Color: "#1185fe"},
	{Platform: models.PlatformMastodon, Name: "Mastodon", Color: "#563acc"},
}

func NetworkName(platform models.Platform) string {
	for _, s := range AvailableSources {
		if s.Platform == platform {
			return s.Name
		}
	}
	return string(platform)
}

// ConvNetworkToURL builds a profile URL. Mastodon usernames are user@domain.
func ConvNetworkToURL(platform models.Platform, username string) (string, error) {
	switch platform {
	case models.PlatformBluesky:
		return "https://bsky.app/profile/" + username, nil
	case models.PlatformMastodon:
		splits := strings.Split(username, "@")
		if len(splits) != 2 || splits[0] == "" || splits[1] == "" {
			return "", fmt.Errorf("mastodon username %q is not user@domain", username)
		}
		return fmt.Sprintf("https://%v/@%v", splits[1], splits[0]), nil
	default:
		return "", fmt.Errorf("network %v not recognized", platform)
	}
}

func ConvPostToURL(platform models.Platform, author, networkId string) (string, error) {
	switch platform {
	case models.PlatformBluesky:
		if author == "" || networkId == "" {
			return "", fmt.Errorf("bluesky post url needs author and record key")
		}
		return "https://bsky.app/profile/" + author + "/post/" + networkId, nil
	case models.PlatformMastodon:
		splits := strings.Split(author, "@")
		if len(splits) != 2 || splits[0] == "" || splits[1] == "" {
			return "", fmt.Errorf("mastodon username %q is not user@domain", author)
		}
		return fmt.Sprintf("https://%v/@%v/%v", splits[1], splits[0], networkId), nil
	default:
		return "", fmt.Errorf("network %v not recognized", platform)
	}
}
