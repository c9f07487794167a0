package conversion

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/chainage"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/corridor"
)

// Topic is the registry key this machine claims while a conversion flow is
// active for a source.
const Topic = "find-location"

// OffsetThresholdMeters is the perpendicular offset above which a reverse
// lookup is reported as an approximate match with its distance, instead of
// an exact "you are here".
const OffsetThresholdMeters = 10.0

// carouselPageSize is the platform limit on carousel columns per message.
const carouselPageSize = 10

var (
	chainageToCoordTriggers = []string{"里程轉座標", "里程轉坐標"}
	coordToChainageTriggers = []string{"座標轉里程", "坐標轉里程"}
	cancelKeywords          = []string{"取消", "結束", "退出"}
)

// Machine drives conversion conversations. It owns the session store
// exclusively; all mutation happens on the event-handling path, which the
// dispatcher serializes per source.
type Machine struct {
	store    *corridor.Store
	sessions *SessionStore
	topics   *bot.TopicStore
	logger   *zap.Logger
}

// NewMachine wires the machine to its collaborators.
func NewMachine(store *corridor.Store, sessions *SessionStore, topics *bot.TopicStore, logger *zap.Logger) *Machine {
	return &Machine{store: store, sessions: sessions, topics: topics, logger: logger}
}

func normalize(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), " ", "")
}

func contains(list []string, text string) bool {
	for _, item := range list {
		if item == text {
			return true
		}
	}
	return false
}

// HandleText implements bot.TextHandler. It returns nil when the text
// neither triggers nor belongs to an active conversion flow, letting the
// dispatcher fall through to other topics.
func (m *Machine) HandleText(ev bot.TextInput) *bot.Reply {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}
	normalized := normalize(text)

	if contains(cancelKeywords, normalized) {
		if m.sessions.Get(ev.SourceID) == nil {
			return nil
		}
		m.clearSession(ev.SourceID)
		return bot.Text("已取消查詢。")
	}

	// A new trigger silently discards any session in progress.
	if contains(chainageToCoordTriggers, normalized) {
		return m.startChainageMode(ev.SourceID)
	}
	if contains(coordToChainageTriggers, normalized) {
		return m.startCoordinateMode(ev.SourceID)
	}

	session := m.sessions.Get(ev.SourceID)
	if session == nil || m.topics.Get(ev.SourceID) != Topic {
		return nil
	}

	switch session.Mode {
	case ModeChainageToCoordinate:
		switch session.Stage {
		case StageAwaitingRoute:
			return m.handleRouteSelection(ev.SourceID, session, text)
		case StageAwaitingChainage:
			return m.handleChainageValue(ev.SourceID, session, text)
		}
	case ModeCoordinateToChainage:
		return m.handleCoordinateText(ev.SourceID, session, text)
	}
	return nil
}

// HandleLocation implements bot.LocationHandler: a shared location supplies
// both coordinates atomically and jumps straight to resolution.
func (m *Machine) HandleLocation(ev bot.LocationInput) *bot.Reply {
	session := m.sessions.Get(ev.SourceID)
	if session == nil || session.Mode != ModeCoordinateToChainage {
		return nil
	}
	lon := ev.Longitude
	lat := ev.Latitude
	session.Longitude = &lon
	session.Latitude = &lat
	return m.resolveCoordinate(ev.SourceID, session)
}

func (m *Machine) setSession(sourceID string, session *Session) {
	m.sessions.Put(sourceID, session)
	m.topics.Set(sourceID, Topic)
}

func (m *Machine) clearSession(sourceID string) {
	m.sessions.Delete(sourceID)
	m.topics.Clear(sourceID)
}

func (m *Machine) startChainageMode(sourceID string) *bot.Reply {
	m.setSession(sourceID, &Session{Mode: ModeChainageToCoordinate, Stage: StageAwaitingRoute})

	names := m.store.Names()
	if len(names) == 0 {
		m.clearSession(sourceID)
		return bot.Text("查無路線資料，請稍後再試。")
	}
	return m.routeSelectionReply(names)
}

// routeSelectionReply builds carousel pages of route cards, 10 columns per
// message (platform limit).
func (m *Machine) routeSelectionReply(names []string) *bot.Reply {
	totalPages := (len(names) + carouselPageSize - 1) / carouselPageSize
	messages := make([]bot.Message, 0, totalPages)
	for page := 0; page < totalPages; page++ {
		start := page * carouselPageSize
		end := start + carouselPageSize
		if end > len(names) {
			end = len(names)
		}
		columns := make([]bot.CarouselColumn, 0, end-start)
		for _, name := range names[start:end] {
			columns = append(columns, bot.CarouselColumn{
				Title:   "路線選擇",
				Text:    truncate(name, 60),
				Actions: []bot.QuickReply{bot.MessageButton("使用這條路線", name)},
			})
		}
		messages = append(messages, bot.CarouselMessage{
			AltText: fmt.Sprintf("里程轉座標 - 選擇路線 %d/%d", page+1, totalPages),
			Columns: columns,
		})
	}
	return bot.NewReply(messages...)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func (m *Machine) startCoordinateMode(sourceID string) *bot.Reply {
	m.setSession(sourceID, &Session{Mode: ModeCoordinateToChainage, Stage: StageAwaitingLongitude})
	return coordinatePrompt("請提供經度")
}

func coordinatePrompt(text string) *bot.Reply {
	return bot.TextWithQuickReplies(text,
		bot.LocationButton("分享位置"),
		bot.MessageButton("取消", "取消"),
	)
}

// handleRouteSelection resolves the typed route name. An unrecognized name
// re-prompts with examples and does not advance the stage.
func (m *Machine) handleRouteSelection(sourceID string, session *Session, text string) *bot.Reply {
	name, ok := m.store.Resolve(text)
	if !ok {
		names := m.store.Names()
		if len(names) > 4 {
			names = names[:4]
		}
		return bot.Text(fmt.Sprintf("找不到這條路線，請直接點選按鈕或輸入例如：%s", strings.Join(names, "、")))
	}

	session.Corridor = name
	session.Stage = StageAwaitingChainage

	startLabel, endLabel, sample := m.store.Bounds(name)
	rangeText := ""
	if startLabel != "" && endLabel != "" {
		rangeText = fmt.Sprintf(" (起 %s 迄 %s)", startLabel, endLabel)
	}
	if sample == "" {
		sample = "K0+100"
	}
	return bot.Text(fmt.Sprintf("請問 %s%s要查詢多少里程？（例如：%s）", name, rangeText, sample))
}

// handleChainageValue parses and resolves the chainage. Unparsable or
// out-of-range input re-prompts without advancing.
func (m *Machine) handleChainageValue(sourceID string, session *Session, text string) *bot.Reply {
	if session.Corridor == "" {
		session.Stage = StageAwaitingRoute
		return bot.Text("請先選擇路線。")
	}

	value, ok := chainage.ParseMarker(text)
	if !ok {
		return bot.Text("無法判讀里程，請再輸入一次，例如：K3+250。")
	}

	lon, lat, err := m.store.Interpolate(session.Corridor, value)
	if err != nil {
		if errors.Is(err, corridor.ErrOutOfRange) {
			return bot.Text("超出路線範圍，請確認里程是否正確。")
		}
		m.logger.Warn("chainage interpolation failed",
			zap.String("corridor", session.Corridor), zap.Float64("chainage", value), zap.Error(err))
		return bot.Text("查無路線資料，請稍後再試。")
	}

	marker := chainage.Format(value)
	m.clearSession(sourceID)
	return bot.NewReply(
		bot.TextMessage{Text: fmt.Sprintf("這個地點經度為 %.6f, 緯度為 %.6f", lon, lat)},
		bot.LocationMessage{
			Title:     fmt.Sprintf("%s %s", session.Corridor, marker),
			Address:   "里程轉座標結果",
			Latitude:  lat,
			Longitude: lon,
		},
	)
}

// handleCoordinateText accepts longitude then latitude as separate turns,
// with a shortcut: two numbers in the longitude turn resolve immediately.
func (m *Machine) handleCoordinateText(sourceID string, session *Session, text string) *bot.Reply {
	switch session.Stage {
	case StageAwaitingLongitude:
		numbers := chainage.ParseNumbers(text, 2)
		if len(numbers) == 0 {
			return bot.Text("請提供經度數值，例如：121.7298。")
		}
		session.Longitude = &numbers[0]
		if len(numbers) > 1 {
			session.Latitude = &numbers[1]
			return m.resolveCoordinate(sourceID, session)
		}
		session.Stage = StageAwaitingLatitude
		return coordinatePrompt("請提供緯度")

	case StageAwaitingLatitude:
		value, ok := chainage.ParseNumber(text)
		if !ok {
			return bot.Text("請提供緯度數值，例如：25.1089。")
		}
		session.Latitude = &value
		return m.resolveCoordinate(sourceID, session)
	}
	return nil
}

func (m *Machine) resolveCoordinate(sourceID string, session *Session) *bot.Reply {
	if session.Longitude == nil || session.Latitude == nil {
		return nil
	}

	match, err := m.store.Nearest(*session.Longitude, *session.Latitude)
	if err != nil {
		// Empty store or no segments: explain and keep the session so the
		// user can correct the coordinate.
		return bot.Text("附近找不到對應的路線里程，請再確認座標。")
	}

	marker := chainage.Format(match.Chainage)
	var text string
	if match.Offset > OffsetThresholdMeters {
		text = fmt.Sprintf("距離座標最近的路線為「%s%s」，距離%d公尺",
			match.Corridor, marker, int(math.Round(match.Offset)))
	} else {
		text = fmt.Sprintf("這個地點為 %s %s", match.Corridor, marker)
	}
	m.clearSession(sourceID)
	return bot.Text(text)
}
