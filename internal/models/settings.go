package models

// Settings holds the game customization key/value pairs (logo, background
// media, fonts) managed by the admin panel. The coordinator never reads them;
// they are served to the projection and player frontends as-is.
type Settings map[string]string
