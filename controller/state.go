package controller

// Progress mirrors the engine's most recent progress event. Meaningful only
// while the stage is initializing or recognizing.
type Progress struct {
	Status   string  `json:"status"`
	Fraction float64 `json:"fraction"`
}

// State is an immutable snapshot of the controller, safe to hand to any
// goroutine. Seq increases with every published change so stream consumers
// can discard stale snapshots.
type State struct {
	Stage       Stage    `json:"stage"`
	Progress    Progress `json:"progress"`
	Text        string   `json:"text"`
	Error       string   `json:"error"`
	PreviewURL  string   `json:"preview_url"`
	EngineName  string   `json:"engine"`
	EngineReady bool     `json:"engine_ready"`
	Language    string   `json:"language"`
	Seq         uint64   `json:"seq"`
}
