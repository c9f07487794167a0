// Package rainfall implements the rain-gauge lookup conversation: pick a
// query mode (coordinate, station, district), supply one input, and get
// formatted precipitation readouts from the locally ingested dataset.
package rainfall

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
)

// TopicKey is the registry key this topic claims while a rainfall query is
// active for a source.
const TopicKey = "check-rainfall"

const (
	nearestLimit  = 3
	stationLimit  = 5
	districtLimit = 20
)

type queryMode string

const (
	modeCoordinate queryMode = "coordinate"
	modeStation    queryMode = "station"
	modeDistrict   queryMode = "district"
)

var (
	triggers   = []string{"查雨量", "雨量站", "查詢雨量", "下雨嗎"}
	modeLabels = map[string]queryMode{
		"雨量查詢：座標":  modeCoordinate,
		"雨量查詢：測站":  modeStation,
		"雨量查詢：行政區": modeDistrict,
	}
	cancelKeyword = "取消雨量查詢"
	coordPattern  = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	districtSplit = regexp.MustCompile(`[\s,，]+`)
)

// ObservationSource answers the three query shapes. Implemented by
// service.RainfallService.
type ObservationSource interface {
	NearestByCoordinate(longitude, latitude float64, limit int) ([]models.StationObservationWithDistance, error)
	SearchByStation(keyword string, limit int) ([]models.StationObservation, error)
	SearchByDistrict(city, town string, limit int) ([]models.StationObservation, error)
}

// Topic is the rainfall conversation flow.
type Topic struct {
	source  ObservationSource
	topics  *bot.TopicStore
	pageURL string
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]queryMode
}

// NewTopic wires the topic. pageURL is the public rainfall page linked in
// every result reply.
func NewTopic(source ObservationSource, topics *bot.TopicStore, pageURL string, logger *zap.Logger) *Topic {
	return &Topic{
		source:   source,
		topics:   topics,
		pageURL:  pageURL,
		logger:   logger,
		sessions: make(map[string]queryMode),
	}
}

func (t *Topic) session(sourceID string) (queryMode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mode, ok := t.sessions[sourceID]
	return mode, ok
}

func (t *Topic) setSession(sourceID string, mode queryMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sourceID] = mode
}

func (t *Topic) clearSession(sourceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[sourceID]
	delete(t.sessions, sourceID)
	return ok
}

func entryMessage() *bot.Reply {
	return bot.TextWithQuickReplies("請選擇要查詢雨量的方式，可以依照座標、測站名稱或行政區查詢。",
		bot.MessageButton("座標", "雨量查詢：座標"),
		bot.MessageButton("測站", "雨量查詢：測站"),
		bot.MessageButton("行政區", "雨量查詢：行政區"),
	)
}

func coordinatePrompt() *bot.Reply {
	return bot.TextWithQuickReplies("請輸入經度與緯度，例如「121.446,24.925」，或直接分享位置。",
		bot.LocationButton("分享位置"),
		bot.MessageButton("取消", cancelKeyword),
	)
}

// HandleText implements bot.TextHandler.
func (t *Topic) HandleText(ev bot.TextInput) *bot.Reply {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}

	for _, trigger := range triggers {
		if text == trigger {
			t.topics.Set(ev.SourceID, TopicKey)
			t.mu.Lock()
			delete(t.sessions, ev.SourceID)
			t.mu.Unlock()
			return entryMessage()
		}
	}

	if text == cancelKeyword {
		if !t.clearSession(ev.SourceID) {
			return nil
		}
		t.topics.Clear(ev.SourceID)
		return bot.Text("已取消雨量查詢。")
	}

	if mode, ok := modeLabels[text]; ok {
		t.topics.Set(ev.SourceID, TopicKey)
		t.setSession(ev.SourceID, mode)
		switch mode {
		case modeCoordinate:
			return coordinatePrompt()
		case modeStation:
			return bot.Text("請輸入測站名稱或測站代碼，例如：建安國小 或 81AI10。")
		case modeDistrict:
			return bot.Text("請輸入縣市與行政區，例如：新北市 新店區。只輸入縣市也可以。")
		}
	}

	if t.topics.Get(ev.SourceID) != TopicKey {
		return nil
	}
	mode, ok := t.session(ev.SourceID)
	if !ok {
		return nil
	}

	switch mode {
	case modeCoordinate:
		lon, lat, ok := parseCoordinateText(text)
		if !ok {
			return coordinatePrompt()
		}
		return t.coordinateQuery(ev.SourceID, lon, lat)
	case modeStation:
		return t.stationQuery(ev.SourceID, text)
	case modeDistrict:
		return t.districtQuery(ev.SourceID, text)
	}
	return nil
}

// HandleLocation implements bot.LocationHandler.
func (t *Topic) HandleLocation(ev bot.LocationInput) *bot.Reply {
	mode, ok := t.session(ev.SourceID)
	if !ok || mode != modeCoordinate {
		return nil
	}
	return t.coordinateQuery(ev.SourceID, ev.Longitude, ev.Latitude)
}

func parseCoordinateText(text string) (lon, lat float64, ok bool) {
	replacer := strings.NewReplacer("，", ",", "；", ",")
	numbers := coordPattern.FindAllString(replacer.Replace(text), -1)
	if len(numbers) < 2 {
		return 0, 0, false
	}
	var err error
	if lon, err = strconv.ParseFloat(numbers[0], 64); err != nil {
		return 0, 0, false
	}
	if lat, err = strconv.ParseFloat(numbers[1], 64); err != nil {
		return 0, 0, false
	}
	return lon, lat, true
}

func (t *Topic) coordinateQuery(sourceID string, longitude, latitude float64) *bot.Reply {
	nearest, err := t.source.NearestByCoordinate(longitude, latitude, nearestLimit)
	if err != nil {
		return t.errorReply(sourceID, err)
	}
	items := make([]models.StationObservation, len(nearest))
	for i, n := range nearest {
		items[i] = n.StationObservation
	}
	return t.resultReply(sourceID, items)
}

func (t *Topic) stationQuery(sourceID, keyword string) *bot.Reply {
	items, err := t.source.SearchByStation(keyword, stationLimit)
	if err != nil {
		return t.errorReply(sourceID, err)
	}
	return t.resultReply(sourceID, items)
}

func (t *Topic) districtQuery(sourceID, text string) *bot.Reply {
	parts := districtSplit.Split(strings.TrimSpace(text), 2)
	if len(parts) == 0 || parts[0] == "" {
		return bot.Text("請輸入縣市或縣市＋行政區。")
	}
	city := parts[0]
	town := ""
	if len(parts) > 1 {
		town = parts[1]
	}
	items, err := t.source.SearchByDistrict(city, town, districtLimit)
	if err != nil {
		return t.errorReply(sourceID, err)
	}
	return t.resultReply(sourceID, items)
}

// resultReply ends the session; a fresh trigger starts the next query.
func (t *Topic) resultReply(sourceID string, items []models.StationObservation) *bot.Reply {
	t.clearSession(sourceID)
	t.topics.Clear(sourceID)
	return bot.NewReply(
		bot.TextMessage{Text: FormatObservations(items)},
		bot.TextMessage{Text: fmt.Sprintf("查看更多雨量資訊：%s", t.pageURL)},
	)
}

func (t *Topic) errorReply(sourceID string, err error) *bot.Reply {
	t.logger.Warn("rainfall query failed", zap.String("source", sourceID), zap.Error(err))
	t.clearSession(sourceID)
	t.topics.Clear(sourceID)
	return bot.Text("查詢雨量資料時發生問題，請稍後再試。")
}

func formatRain(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *value)
}

// FormatObservation renders one station block for chat.
func FormatObservation(item models.StationObservation) string {
	locationText := ""
	if item.City != nil {
		locationText = *item.City
	}
	if item.Town != nil {
		if locationText != "" {
			locationText += " "
		}
		locationText += *item.Town
	}

	attrText := "-"
	if item.Attribute != nil && *item.Attribute != "" {
		attrText = *item.Attribute
	}
	elevText := "-"
	if item.Elevation != nil {
		elevText = fmt.Sprintf("%.1f", *item.Elevation)
	}

	lines := []string{
		fmt.Sprintf("%s（%s）", item.StationName, item.StationID),
		fmt.Sprintf("觀測時間：%s", item.ObsTime),
		fmt.Sprintf("位置：%s（ %.5f, %.5f ）", locationText, item.Longitude, item.Latitude),
		fmt.Sprintf("海拔：%s m　屬性：%s", elevText, attrText),
		fmt.Sprintf("10 分：%s mm　 1 小時：%s mm　 3 小時：%s mm",
			formatRain(item.Min10), formatRain(item.Hour1), formatRain(item.Hour3)),
		fmt.Sprintf("6 小時：%s mm　 12 小時：%s mm　 24 小時：%s mm",
			formatRain(item.Hour6), formatRain(item.Hour12), formatRain(item.Hour24)),
	}
	return strings.Join(lines, "\n")
}

// FormatObservations renders the full reply body.
func FormatObservations(items []models.StationObservation) string {
	if len(items) == 0 {
		return "查無對應的雨量資料，請換個條件或稍後再試。"
	}
	blocks := make([]string, len(items))
	for i, item := range items {
		blocks[i] = FormatObservation(item)
	}
	return strings.Join(blocks, "\n\n")
}
