package chat

import (
	"errors"
	"strings"
)

// ErrMalformedChannel indicates a chat id that is not two ids joined by "_".
var ErrMalformedChannel = errors.New("chat: malformed channel id")

// ChannelID derives the canonical two-party channel identifier: both
// participant ids lexicographically sorted and joined with "_". Channels are
// never created as entities; the id is the channel.
func ChannelID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// ParseChannel splits a channel id into its two participant ids.
func ParseChannel(chatID string) (string, string, error) {
	parts := strings.SplitN(chatID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedChannel
	}
	return parts[0], parts[1], nil
}

// Other returns the peer of userID within the channel. It returns an error
// when userID is not a participant.
func Other(chatID, userID string) (string, error) {
	a, b, err := ParseChannel(chatID)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", ErrMalformedChannel
}
