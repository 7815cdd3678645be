package notify

// Channel is a delivery medium for notifications. The set is closed:
// provider registration rejects anything outside of it.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelPush      Channel = "push"
	ChannelWebSocket Channel = "websocket"
	ChannelInApp     Channel = "in_app"
	ChannelPhoneCall Channel = "phone_call"
)

// Channels returns all valid channels in a stable order.
func Channels() []Channel {
	return []Channel{
		ChannelEmail,
		ChannelSMS,
		ChannelPush,
		ChannelWebSocket,
		ChannelInApp,
		ChannelPhoneCall,
	}
}

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWebSocket, ChannelInApp, ChannelPhoneCall:
		return true
	default:
		return false
	}
}

// Addressless reports whether the channel is addressed by recipient ID alone,
// without a per-channel address (websocket and in-app delivery).
func (c Channel) Addressless() bool {
	return c == ChannelWebSocket || c == ChannelInApp
}

func (c Channel) String() string {
	return string(c)
}
