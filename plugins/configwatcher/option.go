package configwatcher

import "github.com/mob852/framecast/pkg/framecast"

// WithConfigWatcher returns a framecast Option that reloads sender pacing
// whenever the config file changes.
//
// Usage:
//
//	snd, err := framecast.NewSender(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/framecast/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) framecast.Option {
	return framecast.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher watches ~/.framecast/config.toml.
func WithDefaultConfigWatcher() framecast.Option {
	return WithConfigWatcher(DefaultConfig())
}
