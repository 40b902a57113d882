package ui_config

type Button struct {
	Row      int  `hcl:"row"`
	Column   int  `hcl:"column"`
	Inverted bool `hcl:"inverted"`
}

type Config struct {
	BlinkMs  int  `hcl:"blink_ms"`
	SettleMs int  `hcl:"settle_ms"`
	PollMs   int  `hcl:"poll_ms"`
	SyncScan bool `hcl:"sync_scan"`

	// nil: default position
	Buttons struct {
		Left   *Button `hcl:"left"`
		Right  *Button `hcl:"right"`
		Select *Button `hcl:"select"`
		Return *Button `hcl:"return"`
	}
}
