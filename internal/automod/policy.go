package automod

import (
	"time"

	"warden/internal/storage"
)

// Policy is the slice of guild settings the detector and tracker consume.
type Policy struct {
	Enabled      bool
	SpamLimit    int
	Window       time.Duration
	CapsPercent  int
	LinksEnabled bool
}

func PolicyFromSettings(settings storage.GuildSettings, window time.Duration) Policy {
	return Policy{
		Enabled:      settings.AutoModEnabled,
		SpamLimit:    settings.AutoModSpamLimit,
		Window:       window,
		CapsPercent:  settings.AutoModCapsPercent,
		LinksEnabled: settings.AutoModLinksEnabled,
	}
}
