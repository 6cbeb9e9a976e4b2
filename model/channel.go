package model

// NoStation marks the absence of a station index.
const NoStation = -1

// Channel is the shared medium.
type Channel struct {
	Idle bool

	// SendTimeRemaining counts the slots left in the current occupation.
	SendTimeRemaining int

	// Sender is the index of the station holding the medium, or NoStation.
	Sender int
}

// NewChannel returns an idle channel.
func NewChannel() *Channel {
	return &Channel{Idle: true, Sender: NoStation}
}

// Occupy marks the channel busy for the given number of slots on behalf of
// the sender.
func (c *Channel) Occupy(sender, slots int) {
	c.Idle = false
	c.SendTimeRemaining = slots
	c.Sender = sender
}

// Release returns the channel to idle and reports which station was sending.
func (c *Channel) Release() int {
	sender := c.Sender
	c.Idle = true
	c.SendTimeRemaining = 0
	c.Sender = NoStation
	return sender
}
