package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Channel name prefixes. Private channels require a signed subscription;
// presence channels additionally carry signed identity metadata.
const (
	PrivateChannelPrefix  = "private-"
	PresenceChannelPrefix = "presence-"
)

// groupChannelInfix sits between the access prefix and the group id, e.g.
// "private-group-17".
const groupChannelInfix = "group-"

var (
	channelNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-=@,.;]+$`)
	socketIDPattern    = regexp.MustCompile(`^\d+\.\d+$`)
)

// Validation errors surfaced by the channel authorizer.
var (
	ErrInvalidChannelName = errors.New("realtime: invalid channel name")
	ErrInvalidSocketID    = errors.New("realtime: invalid socket id")
)

// GroupChannel returns the private channel name for a group's message stream.
func GroupChannel(groupID uint64) string {
	return PrivateChannelPrefix + groupChannelInfix + strconv.FormatUint(groupID, 10)
}

// ParseGroupChannel extracts the group id from a private or presence group
// channel name. ok is false for channels that do not address a group.
func ParseGroupChannel(channel string) (uint64, bool) {
	rest := ""
	switch {
	case strings.HasPrefix(channel, PrivateChannelPrefix):
		rest = strings.TrimPrefix(channel, PrivateChannelPrefix)
	case strings.HasPrefix(channel, PresenceChannelPrefix):
		rest = strings.TrimPrefix(channel, PresenceChannelPrefix)
	default:
		return 0, false
	}
	if !strings.HasPrefix(rest, groupChannelInfix) {
		return 0, false
	}
	id, errParse := strconv.ParseUint(strings.TrimPrefix(rest, groupChannelInfix), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// PresenceData is the identity metadata signed into presence channel
// subscriptions.
type PresenceData struct {
	UserID   string         `json:"user_id"`
	UserInfo map[string]any `json:"user_info,omitempty"`
}

// ChannelAuth is the response body for an authorized subscription.
type ChannelAuth struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// Authorizer signs channel subscription requests with the shared transport
// secret.
type Authorizer struct {
	appKey string
	secret []byte
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(appKey, secret string) *Authorizer {
	return &Authorizer{
		appKey: strings.TrimSpace(appKey),
		secret: []byte(secret),
	}
}

// AuthorizeChannel signs a private channel subscription. The token covers
// "{socketID}:{channelName}" so it cannot be replayed for another socket or
// channel.
func (a *Authorizer) AuthorizeChannel(socketID, channelName string) (ChannelAuth, error) {
	if errValidate := a.validate(socketID, channelName); errValidate != nil {
		return ChannelAuth{}, errValidate
	}
	signature := a.sign(socketID + ":" + channelName)
	return ChannelAuth{Auth: a.appKey + ":" + signature}, nil
}

// AuthorizePresenceChannel signs a presence channel subscription including
// serialized identity metadata.
func (a *Authorizer) AuthorizePresenceChannel(socketID, channelName string, data PresenceData) (ChannelAuth, error) {
	if errValidate := a.validate(socketID, channelName); errValidate != nil {
		return ChannelAuth{}, errValidate
	}
	channelData, errMarshal := json.Marshal(data)
	if errMarshal != nil {
		return ChannelAuth{}, fmt.Errorf("realtime: marshal presence data: %w", errMarshal)
	}
	signature := a.sign(socketID + ":" + channelName + ":" + string(channelData))
	return ChannelAuth{
		Auth:        a.appKey + ":" + signature,
		ChannelData: string(channelData),
	}, nil
}

func (a *Authorizer) validate(socketID, channelName string) error {
	if !socketIDPattern.MatchString(socketID) {
		return ErrInvalidSocketID
	}
	if channelName == "" || !channelNamePattern.MatchString(channelName) {
		return ErrInvalidChannelName
	}
	return nil
}

func (a *Authorizer) sign(message string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
