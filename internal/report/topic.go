// Package report implements the hazard-report conversation: a staged form
// that collects event type, route, track side, mileage, a photo and the
// site location, then persists the confirmed report.
package report

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
)

// TopicKey is the registry key this topic claims while a report is being
// filled in for a source.
const TopicKey = "report-event"

type stage string

const (
	stageEventType stage = "event_type"
	stageRouteLine stage = "route_line"
	stageTrackSide stage = "track_side"
	stageMileage   stage = "mileage"
	stagePhoto     stage = "photo"
	stageLocation  stage = "location"
	stageConfirm   stage = "confirm"
)

var (
	triggers       = []string{"回報事件", "事件回報", "災情回報"}
	cancelKeywords = []string{"取消", "取消事件回報", "結束事件回報", "退出事件回報"}
	confirmYes     = []string{"是", "是的", "確認", "沒問題", "ok", "ok的", "ｏｋ"}
	confirmNo      = []string{"否", "不是", "重新輸入", "不正確", "否定"}

	// EventTypes, RouteLines and TrackSides are the fixed menu options.
	EventTypes = []string{"土石滑落", "落石", "路樹侵入", "其他"}
	RouteLines = []string{"平溪線", "深澳線", "宜蘭線", "北迴線"}
	TrackSides = []string{"東正線", "西正線"}

	mileagePattern = regexp.MustCompile(`^(?:k|K)?\s*(\d+)(?:\+(\d+))?$`)
	coordPattern   = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
)

// session is one in-progress report form.
type session struct {
	Stage            stage
	EventType        string
	RouteLine        string
	TrackSide        string
	MileageText      string
	MileageMeters    *float64
	PhotoFilename    *string
	Longitude        *float64
	Latitude         *float64
	LocationTitle    *string
	LocationAddress  *string
	EstLongitude     *float64
	EstLatitude      *float64
	locationPrompted bool
}

// MediaFetcher downloads the binary content of a chat message, returning
// the payload and its content type.
type MediaFetcher interface {
	FetchContent(messageID string) ([]byte, string, error)
}

// MileageLocator geolocates a route name plus mileage marker text.
// Implemented by corridor.Store; nil disables the estimate shortcut.
type MileageLocator interface {
	ResolveMarker(nameText, markerText string) (name string, value, longitude, latitude float64, err error)
}

// EventSaver persists a confirmed report. Implemented by
// service.EventService.
type EventSaver interface {
	Create(e *models.ReportEvent) (int64, error)
}

// Topic is the report conversation flow.
type Topic struct {
	saver      EventSaver
	media      MediaFetcher
	locator    MileageLocator
	topics     *bot.TopicStore
	pictureDir string
	pageURL    string
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewTopic wires the topic. Photos land in pictureDir; pageURL is the
// public map page mentioned after a successful report.
func NewTopic(saver EventSaver, media MediaFetcher, locator MileageLocator, topics *bot.TopicStore, pictureDir, pageURL string, logger *zap.Logger) *Topic {
	return &Topic{
		saver:      saver,
		media:      media,
		locator:    locator,
		topics:     topics,
		pictureDir: pictureDir,
		pageURL:    pageURL,
		logger:     logger,
		sessions:   make(map[string]*session),
	}
}

func normalizeToken(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), ""))
}

func containsToken(list []string, normalized string) bool {
	for _, item := range list {
		if normalizeToken(item) == normalized {
			return true
		}
	}
	return false
}

func containsString(list []string, text string) bool {
	for _, item := range list {
		if item == text {
			return true
		}
	}
	return false
}

func (t *Topic) session(sourceID string) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[sourceID]
}

func (t *Topic) setSession(sourceID string, s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == nil {
		delete(t.sessions, sourceID)
	} else {
		t.sessions[sourceID] = s
	}
}

func optionButtons(options []string) []bot.QuickReply {
	items := make([]bot.QuickReply, len(options))
	for i, option := range options {
		items[i] = bot.MessageButton(option, option)
	}
	return items
}

func confirmButtons() []bot.QuickReply {
	return []bot.QuickReply{
		bot.MessageButton("是", "是"),
		bot.MessageButton("否", "否"),
	}
}

// HandleText implements bot.TextHandler.
func (t *Topic) HandleText(ev bot.TextInput) *bot.Reply {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}
	normalized := normalizeToken(text)

	if containsToken(cancelKeywords, normalized) {
		if t.session(ev.SourceID) == nil {
			return nil
		}
		t.setSession(ev.SourceID, nil)
		t.topics.Clear(ev.SourceID)
		return bot.Text("已取消事件回報。")
	}

	if containsToken(triggers, normalized) {
		t.setSession(ev.SourceID, &session{Stage: stageEventType})
		t.topics.Set(ev.SourceID, TopicKey)
		return bot.TextWithQuickReplies("請選擇要回報的事件類型：", optionButtons(EventTypes)...)
	}

	s := t.session(ev.SourceID)
	if s == nil || t.topics.Get(ev.SourceID) != TopicKey {
		return nil
	}

	switch s.Stage {
	case stageEventType:
		return t.handleEventType(s, text)
	case stageRouteLine:
		return t.handleRouteLine(s, text)
	case stageTrackSide:
		return t.handleTrackSide(s, text)
	case stageMileage:
		return t.handleMileage(s, text)
	case stagePhoto:
		return bot.Text("請先傳送照片，才能繼續下一步。")
	case stageLocation:
		return t.handleLocationText(s, text)
	case stageConfirm:
		return t.handleConfirmation(ev.SourceID, s, normalized)
	}
	return nil
}

func (t *Topic) handleEventType(s *session, text string) *bot.Reply {
	if !containsString(EventTypes, text) {
		return bot.Text("請從選項中選擇事件類型。")
	}
	s.EventType = text
	s.Stage = stageRouteLine
	return routeLinePrompt()
}

func routeLinePrompt() *bot.Reply {
	return bot.TextWithQuickReplies("請選擇路線別：", optionButtons(RouteLines)...)
}

func trackSidePrompt() *bot.Reply {
	return bot.TextWithQuickReplies("請選擇邊別／正線：", optionButtons(TrackSides)...)
}

func (t *Topic) handleRouteLine(s *session, text string) *bot.Reply {
	if !containsString(RouteLines, text) {
		return routeLinePrompt()
	}
	s.RouteLine = text
	s.Stage = stageTrackSide
	return trackSidePrompt()
}

func (t *Topic) handleTrackSide(s *session, text string) *bot.Reply {
	if !containsString(TrackSides, text) {
		return trackSidePrompt()
	}
	s.TrackSide = text
	s.Stage = stageMileage
	return bot.Text("請輸入里程 K 值（例如：10+100 或 K10+100）：")
}

// ParseMileage accepts the strict report form "K10+100" / "10+100" / "10"
// and returns the canonical text plus the value in meters.
func ParseMileage(text string) (string, float64, bool) {
	cleaned := strings.ReplaceAll(text, " ", "")
	match := mileagePattern.FindStringSubmatch(cleaned)
	if match == nil {
		return "", 0, false
	}
	km, err := strconv.Atoi(match[1])
	if err != nil {
		return "", 0, false
	}
	offset := 0
	if match[2] != "" {
		if offset, err = strconv.Atoi(match[2]); err != nil {
			return "", 0, false
		}
	}
	return fmt.Sprintf("%d+%03d", km, offset), float64(km*1000 + offset), true
}

func (t *Topic) handleMileage(s *session, text string) *bot.Reply {
	mileageText, meters, ok := ParseMileage(text)
	if !ok {
		return bot.Text("里程格式不正確，範例：10+100 或 K10+100。")
	}
	s.MileageText = mileageText
	s.MileageMeters = &meters
	s.EstLongitude = nil
	s.EstLatitude = nil
	if t.locator != nil {
		if _, _, lon, lat, err := t.locator.ResolveMarker(s.RouteLine, mileageText); err == nil {
			s.EstLongitude = &lon
			s.EstLatitude = &lat
		}
	}
	s.Stage = stagePhoto
	return bot.TextWithQuickReplies("請拍照或從相簿選取一張照片作為佐證：",
		bot.QuickReply{Kind: bot.QuickReplyCamera, Label: "拍照"},
		bot.QuickReply{Kind: bot.QuickReplyCameraRoll, Label: "相簿"},
	)
}

// useEstimateKeyword fills in the coordinate derived from route + mileage
// instead of a shared location.
const useEstimateKeyword = "使用里程位置"

func locationPrompt(s *session, includeAck bool) *bot.Reply {
	prefix := ""
	if includeAck {
		prefix = "已收到照片，"
	}
	s.locationPrompted = true
	text := prefix + "請分享現場位置（可使用「分享位置」按鈕，或輸入經緯度，例如 121.123,24.456）。"
	buttons := []bot.QuickReply{bot.LocationButton("分享位置")}
	if s.EstLongitude != nil && s.EstLatitude != nil {
		text += "\n也可回覆「" + useEstimateKeyword + "」，採用依路線里程推算的座標。"
		buttons = append(buttons, bot.MessageButton(useEstimateKeyword, useEstimateKeyword))
	}
	return bot.TextWithQuickReplies(text, buttons...)
}

func parseCoordinateText(text string) (lon, lat float64, ok bool) {
	replacer := strings.NewReplacer("，", ",", "、", ",", "；", ",", " ", "")
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

func (t *Topic) handleLocationText(s *session, text string) *bot.Reply {
	if normalizeToken(text) == normalizeToken(useEstimateKeyword) &&
		s.EstLongitude != nil && s.EstLatitude != nil {
		s.Longitude = s.EstLongitude
		s.Latitude = s.EstLatitude
		s.LocationTitle = nil
		s.LocationAddress = nil
		s.Stage = stageConfirm
		return summaryReply(s)
	}

	lon, lat, ok := parseCoordinateText(text)
	if !ok {
		return locationPrompt(s, false)
	}
	s.Longitude = &lon
	s.Latitude = &lat
	s.LocationTitle = nil
	s.LocationAddress = nil
	s.Stage = stageConfirm
	return summaryReply(s)
}

func summaryReply(s *session) *bot.Reply {
	photoText := "[-]"
	if s.PhotoFilename != nil {
		photoText = "[*]"
	}
	coordText := "-/-"
	if s.Longitude != nil && s.Latitude != nil {
		coordText = fmt.Sprintf("%.5f, %.5f", *s.Longitude, *s.Latitude)
	}

	lines := []string{
		fmt.Sprintf("事件類型：%s", valueOr(s.EventType)),
		fmt.Sprintf("路線別：%s", valueOr(s.RouteLine)),
		fmt.Sprintf("邊別／正線：%s", valueOr(s.TrackSide)),
		fmt.Sprintf("里程K：%s", valueOr(s.MileageText)),
		fmt.Sprintf("照片：%s", photoText),
		fmt.Sprintf("位置：%s", coordText),
	}
	var descBits []string
	if s.LocationTitle != nil && *s.LocationTitle != "" {
		descBits = append(descBits, *s.LocationTitle)
	}
	if s.LocationAddress != nil && *s.LocationAddress != "" {
		descBits = append(descBits, *s.LocationAddress)
	}
	if len(descBits) > 0 {
		lines = append(lines, fmt.Sprintf("地點描述：%s", strings.Join(descBits, " / ")))
	}
	lines = append(lines, "請確認資料是否完整正確？請回覆「是」或「否」。")

	return bot.NewReply(bot.TextMessage{
		Text:         strings.Join(lines, "\n"),
		QuickReplies: confirmButtons(),
	})
}

func valueOr(text string) string {
	if text == "" {
		return "-"
	}
	return text
}

func splitSource(sourceID string) (sourceType, id *string) {
	parts := strings.SplitN(sourceID, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil
	}
	return &parts[0], &parts[1]
}

func (t *Topic) handleConfirmation(sourceID string, s *session, normalized string) *bot.Reply {
	if containsToken(confirmYes, normalized) {
		sourceType, srcID := splitSource(sourceID)
		event := &models.ReportEvent{
			EventType:     s.EventType,
			RouteLine:     s.RouteLine,
			TrackSide:     s.TrackSide,
			MileageText:   s.MileageText,
			MileageMeters: s.MileageMeters,
			PhotoFilename: s.PhotoFilename,
			Longitude:     s.Longitude,
			Latitude:      s.Latitude,
			LocationTitle: s.LocationTitle,
			LocationAddr:  s.LocationAddress,
			SourceType:    sourceType,
			SourceID:      srcID,
		}
		if _, err := t.saver.Create(event); err != nil {
			t.logger.Error("failed to save report", zap.String("source", sourceID), zap.Error(err))
			return bot.Text("儲存回報資料時發生問題，請稍後再試，或回覆「否」取消。")
		}
		t.setSession(sourceID, nil)
		t.topics.Clear(sourceID)
		return bot.Text(fmt.Sprintf("已完成事件回報，感謝提供資訊！\n可於 %s 檢視事件分佈圖。", t.pageURL))
	}

	if containsToken(confirmNo, normalized) {
		t.setSession(sourceID, nil)
		t.topics.Clear(sourceID)
		return bot.Text("已取消此次回報，如需重新填寫可再次輸入「回報事件」。")
	}

	return bot.Text("請輸入「是」或「否」，以確認資料是否正確。")
}

func extensionFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	default:
		return ".bin"
	}
}

func (t *Topic) savePhoto(messageID string) (string, error) {
	data, contentType, err := t.media.FetchContent(messageID)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}
	if err := os.MkdirAll(t.pictureDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create picture dir: %w", err)
	}

	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate photo name: %w", err)
	}
	filename := fmt.Sprintf("%s_%s%s",
		time.Now().UTC().Format("20060102150405"),
		hex.EncodeToString(suffix),
		extensionFor(contentType))

	if err := os.WriteFile(filepath.Join(t.pictureDir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	return filename, nil
}

// HandleImage implements bot.ImageHandler: a photo is only claimed while a
// session waits at the photo stage.
func (t *Topic) HandleImage(ev bot.ImageInput) *bot.Reply {
	s := t.session(ev.SourceID)
	if s == nil || s.Stage != stagePhoto {
		return nil
	}

	filename, err := t.savePhoto(ev.MessageID)
	if err != nil {
		t.logger.Warn("photo save failed", zap.String("source", ev.SourceID), zap.Error(err))
		return bot.Text("照片儲存失敗，請再試一次或改用其他照片。")
	}
	s.PhotoFilename = &filename
	s.Stage = stageLocation
	return locationPrompt(s, true)
}

// HandleLocation implements bot.LocationHandler: a location share fills the
// site coordinates at the location stage, or revises them at confirm.
func (t *Topic) HandleLocation(ev bot.LocationInput) *bot.Reply {
	s := t.session(ev.SourceID)
	if s == nil || (s.Stage != stageLocation && s.Stage != stageConfirm) {
		return nil
	}

	lon, lat := ev.Longitude, ev.Latitude
	s.Longitude = &lon
	s.Latitude = &lat
	if ev.Title != "" {
		title := ev.Title
		s.LocationTitle = &title
	} else {
		s.LocationTitle = nil
	}
	if ev.Address != "" {
		address := ev.Address
		s.LocationAddress = &address
	} else {
		s.LocationAddress = nil
	}
	s.Stage = stageConfirm
	return summaryReply(s)
}
