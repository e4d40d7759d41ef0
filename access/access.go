// Package access answers "can this user join / post / read here" from the
// current moderation and channel state. It never writes anything.
package access

import (
	"chathub/moderation"
	"chathub/types"
)

// Decision is the evaluator's verdict. When neither Allowed nor a denial
// reason applies, the NeedPassword/NeedApproval flags tell the caller which
// second step to drive before a membership can be created.
type Decision struct {
	Allowed      bool
	Reason       string
	NeedPassword bool
	NeedApproval bool
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

type Evaluator struct {
	Moderation *moderation.Store
}

// CanJoin checks the ban state and then branches on the channel's gates. It
// creates nothing itself: an allowed verdict means the caller may insert the
// membership immediately.
func (e *Evaluator) CanJoin(user types.User, channel types.Channel) (Decision, error) {
	ban, err := e.Moderation.EffectiveBan(user.ID, channel.ID)
	if err != nil {
		return Decision{}, err
	}
	if ban != nil {
		return deny("You cannot join, you are " + moderation.Describe(ban, "banned", channel.Name)), nil
	}
	if channel.RequiresApproval || channel.IsProtected() {
		return Decision{
			NeedPassword: channel.IsProtected(),
			NeedApproval: channel.RequiresApproval,
		}, nil
	}
	return allow(), nil
}

// CanPost checks ban, then mute, then the channel write-lock. The ordering
// fixes which denial the user sees when several apply.
func (e *Evaluator) CanPost(user types.User, channel types.Channel) (Decision, error) {
	ban, err := e.Moderation.EffectiveBan(user.ID, channel.ID)
	if err != nil {
		return Decision{}, err
	}
	if ban != nil {
		return deny("You cannot send messages, you are " + moderation.Describe(ban, "banned", channel.Name)), nil
	}
	mute, err := e.Moderation.EffectiveMute(user.ID, channel.ID)
	if err != nil {
		return Decision{}, err
	}
	if mute != nil {
		return deny("You are " + moderation.Describe(mute, "muted", channel.Name) + ". You cannot send messages"), nil
	}
	if !channel.IsWritable {
		return deny("The administrator has disabled messages in this channel."), nil
	}
	return allow(), nil
}

// CanRead gates history and room subscription on the ban state only.
func (e *Evaluator) CanRead(user types.User, channel types.Channel) (Decision, error) {
	ban, err := e.Moderation.EffectiveBan(user.ID, channel.ID)
	if err != nil {
		return Decision{}, err
	}
	if ban != nil {
		return deny("You cannot access this channel, you are " + moderation.Describe(ban, "banned", channel.Name)), nil
	}
	return allow(), nil
}
