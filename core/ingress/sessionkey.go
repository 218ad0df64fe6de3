package ingress

import "strings"

// anchorField names one candidate identifier for the conversation anchor.
type anchorField int

const (
	anchorThread anchorField = iota
	anchorConversation
	anchorChannel
	anchorUser
)

// anchorPrecedence is the explicit per-provider fallback order for picking
// the conversation anchor. The first populated field wins. Providers without
// an entry use defaultPrecedence.
var anchorPrecedence = map[string][]anchorField{
	// slack threads live inside channels, and the channel id is present on
	// every event while conversation ids only appear on DMs
	"slack": {anchorThread, anchorChannel, anchorConversation},
	// telegram has no threads in private chats, chat id is the conversation
	"telegram": {anchorConversation, anchorUser},
}

var defaultPrecedence = []anchorField{anchorThread, anchorConversation, anchorChannel}

// fallbackAnchor keys events that carry no usable ids at all, so even a
// fully anonymous stream maps onto one well-formed session.
const fallbackAnchor = "conversation"

// DeriveSessionKey computes the stable conversation identity
// `tenant:provider:anchor:user` from an envelope. It is a pure function of
// (tenant, provider, provider_ids): missing optional ids fall through the
// provider's precedence chain, then the user id, then a literal
// "conversation" anchor.
func DeriveSessionKey(env *Envelope) string {
	if env == nil {
		return ""
	}
	provider := strings.ToLower(strings.TrimSpace(env.Provider))
	anchor := pickAnchor(provider, env.ProviderIDs)
	user := env.ProviderIDs.UserID
	if anchor == "" {
		anchor = user
	}
	if anchor == "" {
		anchor = fallbackAnchor
	}
	return env.Tenant + ":" + provider + ":" + anchor + ":" + user
}

func pickAnchor(provider string, ids ProviderIDs) string {
	precedence, ok := anchorPrecedence[provider]
	if !ok {
		precedence = defaultPrecedence
	}
	for _, field := range precedence {
		if v := anchorValue(field, ids); v != "" {
			return v
		}
	}
	return ""
}

func anchorValue(field anchorField, ids ProviderIDs) string {
	switch field {
	case anchorThread:
		return ids.ThreadID
	case anchorConversation:
		return ids.ConversationID
	case anchorChannel:
		return ids.ChannelID
	case anchorUser:
		return ids.UserID
	}
	return ""
}
