package cctv

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
)

// TopicKey is the registry key this topic claims while a CCTV query is
// active for a source.
const TopicKey = "check-cctv"

const (
	nearestLimit  = 3
	nameLimit     = 5
	districtLimit = 10
)

type queryMode string

const (
	modeCoordinate queryMode = "coordinate"
	modeName       queryMode = "name"
	modeDistrict   queryMode = "district"
)

var (
	cctvTriggers = []string{"CCTV", "查CCTV", "查監視器", "CCTV查詢", "監視器查詢"}
	modeLabels   = map[string]queryMode{
		"CCTV查詢：座標":  modeCoordinate,
		"CCTV查詢：名稱":  modeName,
		"CCTV查詢：行政區": modeDistrict,
	}
	cancelKeywords = []string{"取消", "取消CCTV查詢", "取消監視器查詢", "結束CCTV查詢", "退出CCTV查詢"}
	coordPattern   = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
)

// Topic is the CCTV conversation flow: pick a query mode, supply one input,
// get the matching cameras plus a link to the map page.
type Topic struct {
	store   *Store
	topics  *bot.TopicStore
	pageURL string

	mu       sync.Mutex
	sessions map[string]queryMode
}

// NewTopic wires the topic to the camera store and topic registry. pageURL
// is the public map page appended to every result reply.
func NewTopic(store *Store, topics *bot.TopicStore, pageURL string) *Topic {
	return &Topic{
		store:    store,
		topics:   topics,
		pageURL:  pageURL,
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
	return bot.TextWithQuickReplies("請選擇要查詢 CCTV 的方式。",
		bot.MessageButton("座標", "CCTV查詢：座標"),
		bot.MessageButton("名稱", "CCTV查詢：名稱"),
		bot.MessageButton("行政區", "CCTV查詢：行政區"),
	)
}

func coordinatePrompt() *bot.Reply {
	return bot.TextWithQuickReplies("請輸入經緯度（例如 121.446,24.925），或直接分享位置。",
		bot.LocationButton("分享位置"),
		bot.MessageButton("取消", "取消CCTV查詢"),
	)
}

// HandleText implements bot.TextHandler.
func (t *Topic) HandleText(ev bot.TextInput) *bot.Reply {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}

	if containsString(cctvTriggers, text) {
		t.topics.Set(ev.SourceID, TopicKey)
		t.mu.Lock()
		delete(t.sessions, ev.SourceID)
		t.mu.Unlock()
		return entryMessage()
	}

	if containsString(cancelKeywords, text) {
		if !t.clearSession(ev.SourceID) {
			return nil
		}
		t.topics.Clear(ev.SourceID)
		return bot.Text("已取消 CCTV 查詢。")
	}

	if mode, ok := modeLabels[text]; ok {
		t.topics.Set(ev.SourceID, TopicKey)
		t.setSession(ev.SourceID, mode)
		switch mode {
		case modeCoordinate:
			return coordinatePrompt()
		case modeName:
			return bot.Text("請輸入 CCTV 名稱或關鍵字，例：台76線 27K+390。")
		case modeDistrict:
			return bot.Text("請輸入縣市或行政區關鍵字，例：新北市 新店區 或 新店。")
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
	case modeName:
		return t.nameQuery(ev.SourceID, text)
	case modeDistrict:
		return t.districtQuery(ev.SourceID, text)
	}
	return nil
}

// HandleLocation implements bot.LocationHandler: a shared location answers
// a pending coordinate query directly.
func (t *Topic) HandleLocation(ev bot.LocationInput) *bot.Reply {
	mode, ok := t.session(ev.SourceID)
	if !ok || mode != modeCoordinate {
		return nil
	}
	return t.coordinateQuery(ev.SourceID, ev.Longitude, ev.Latitude)
}

func parseCoordinateText(text string) (lon, lat float64, ok bool) {
	replacer := strings.NewReplacer("，", ",", "；", ",", "、", ",", "：", ",", " ", "")
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
	if t.store.Empty() {
		return bot.Text("CCTV 資料尚未準備完成，請稍後再試。")
	}
	results := t.store.Nearest(longitude, latitude, nearestLimit)
	if len(results) == 0 {
		return bot.Text("找不到附近的 CCTV。")
	}

	entries := make([]Entry, len(results))
	distances := make([]float64, len(results))
	for i, r := range results {
		entries[i] = r.Entry
		distances[i] = r.DistanceMeters
	}
	return t.resultReply(sourceID, entries, distances)
}

func (t *Topic) nameQuery(sourceID, keyword string) *bot.Reply {
	if t.store.Empty() {
		return bot.Text("CCTV 資料尚未準備完成，請稍後再試。")
	}
	return t.resultReply(sourceID, t.store.SearchByName(keyword, nameLimit), nil)
}

func (t *Topic) districtQuery(sourceID, keyword string) *bot.Reply {
	if t.store.Empty() {
		return bot.Text("CCTV 資料尚未準備完成，請稍後再試。")
	}
	return t.resultReply(sourceID, t.store.SearchByDistrict(keyword, districtLimit), nil)
}

// resultReply keeps the topic active so the user can issue another query
// with the same mode prompt.
func (t *Topic) resultReply(sourceID string, entries []Entry, distances []float64) *bot.Reply {
	t.topics.Set(sourceID, TopicKey)
	return bot.NewReply(
		bot.TextMessage{Text: formatEntries(entries, distances)},
		bot.TextMessage{Text: fmt.Sprintf("查看更多 CCTV：%s", t.pageURL)},
	)
}

func formatEntries(entries []Entry, distances []float64) string {
	if len(entries) == 0 {
		return "目前沒有符合條件的 CCTV，請嘗試其他關鍵字。"
	}
	var lines []string
	for i, entry := range entries {
		title := entry.DisplayName()
		distanceText := ""
		if i < len(distances) {
			distanceText = fmt.Sprintf("（距離 %s）", FormatDistance(distances[i]))
		}
		lines = append(lines, fmt.Sprintf("%d. %s%s", i+1, title, distanceText))
		if entry.Identifier != "" && !strings.Contains(title, entry.Identifier) {
			lines = append(lines, fmt.Sprintf("   ID：%s", entry.Identifier))
		}
		lines = append(lines, fmt.Sprintf("   來源：%s", entry.URL))
	}
	return strings.Join(lines, "\n")
}

func containsString(list []string, text string) bool {
	for _, item := range list {
		if item == text {
			return true
		}
	}
	return false
}
