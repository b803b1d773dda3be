package model

// Status はゲームのプレイ状況を表す閉じた列挙型。
type Status string

const (
	StatusPlaying   Status = "playing"
	StatusWillPlay  Status = "will_play"
	StatusPassed    Status = "passed"
	StatusPostponed Status = "postponed"
	StatusAbandoned Status = "abandoned"
)

// AllStatuses は全ステータスを固定順で返す。
var AllStatuses = []Status{
	StatusPlaying,
	StatusWillPlay,
	StatusPassed,
	StatusPostponed,
	StatusAbandoned,
}

// ParseStatus は文字列をStatusに変換する。
// 列挙型に含まれない値の場合はfalseを返す。
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPlaying, StatusWillPlay, StatusPassed, StatusPostponed, StatusAbandoned:
		return Status(s), true
	}
	return "", false
}

// StatusCounts はゲーム1件に対する全ステータスのカウンター。
type StatusCounts struct {
	Playing   int `json:"playing"`
	WillPlay  int `json:"will_play"`
	Passed    int `json:"passed"`
	Postponed int `json:"postponed"`
	Abandoned int `json:"abandoned"`
}

// Set は指定ステータスのカウントを設定する。
func (c *StatusCounts) Set(status Status, count int) {
	switch status {
	case StatusPlaying:
		c.Playing = count
	case StatusWillPlay:
		c.WillPlay = count
	case StatusPassed:
		c.Passed = count
	case StatusPostponed:
		c.Postponed = count
	case StatusAbandoned:
		c.Abandoned = count
	}
}

// Get は指定ステータスのカウントを返す。
func (c *StatusCounts) Get(status Status) int {
	switch status {
	case StatusPlaying:
		return c.Playing
	case StatusWillPlay:
		return c.WillPlay
	case StatusPassed:
		return c.Passed
	case StatusPostponed:
		return c.Postponed
	case StatusAbandoned:
		return c.Abandoned
	}
	return 0
}
