package conversion

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/corridor"
)

const src = "user:U123"

func newTestMachine() (*Machine, *SessionStore, *bot.TopicStore) {
	store := corridor.NewStore(map[string][]corridor.Waypoint{
		"平溪線": {
			{Chainage: 0, Longitude: 121.70, Latitude: 25.02},
			{Chainage: 2000, Longitude: 121.72, Latitude: 25.03},
		},
		"深澳線": {
			{Chainage: 0, Longitude: 121.80, Latitude: 25.10},
			{Chainage: 4200, Longitude: 121.84, Latitude: 25.12},
		},
	})
	sessions := NewSessionStore()
	topics := bot.NewTopicStore()
	return NewMachine(store, sessions, topics, zap.NewNop()), sessions, topics
}

func text(ev string) bot.TextInput {
	return bot.TextInput{SourceID: src, Text: ev}
}

func firstText(t *testing.T, reply *bot.Reply) string {
	t.Helper()
	require.NotNil(t, reply)
	require.NotEmpty(t, reply.Messages)
	msg, ok := reply.Messages[0].(bot.TextMessage)
	require.True(t, ok, "first message should be text, got %T", reply.Messages[0])
	return msg.Text
}

func TestMachine_IgnoresUnrelatedText(t *testing.T) {
	m, _, _ := newTestMachine()
	assert.Nil(t, m.HandleText(text("早安")))
	assert.Nil(t, m.HandleText(text("取消")), "cancel without a session is not claimed")
}

func TestMachine_ChainageToCoordinateFlow(t *testing.T) {
	m, sessions, topics := newTestMachine()

	reply := m.HandleText(text("里程轉座標"))
	require.NotNil(t, reply)
	carousel, ok := reply.Messages[0].(bot.CarouselMessage)
	require.True(t, ok)
	assert.Len(t, carousel.Columns, 2)
	assert.Equal(t, Topic, topics.Get(src))
	assert.Equal(t, StageAwaitingRoute, sessions.Get(src).Stage)

	// Unknown route re-prompts and does not advance the stage.
	reply = m.HandleText(text("阿里山線"))
	assert.Contains(t, firstText(t, reply), "找不到這條路線")
	assert.Equal(t, StageAwaitingRoute, sessions.Get(src).Stage)

	// A valid route still succeeds afterwards.
	reply = m.HandleText(text("平溪線"))
	prompt := firstText(t, reply)
	assert.Contains(t, prompt, "平溪線")
	assert.Contains(t, prompt, "K0+100")
	assert.Equal(t, StageAwaitingChainage, sessions.Get(src).Stage)

	// Unparsable chainage re-prompts without advancing.
	reply = m.HandleText(text("不知道"))
	assert.Contains(t, firstText(t, reply), "無法判讀里程")
	assert.Equal(t, StageAwaitingChainage, sessions.Get(src).Stage)

	// Out of range re-prompts without advancing.
	reply = m.HandleText(text("K99+000"))
	assert.Contains(t, firstText(t, reply), "超出路線範圍")
	assert.Equal(t, StageAwaitingChainage, sessions.Get(src).Stage)

	// A valid marker resolves, replies with a pinned location, and ends the
	// session.
	reply = m.HandleText(text("K1+000"))
	require.Len(t, reply.Messages, 2)
	assert.Contains(t, firstText(t, reply), "121.710000")
	loc, ok := reply.Messages[1].(bot.LocationMessage)
	require.True(t, ok)
	assert.Equal(t, "平溪線 K1+000", loc.Title)
	assert.InDelta(t, 25.025, loc.Latitude, 1e-6)
	assert.Nil(t, sessions.Get(src))
	assert.Empty(t, topics.Get(src))
}

func TestMachine_MarkerNormalizedInResult(t *testing.T) {
	m, _, _ := newTestMachine()

	m.HandleText(text("里程轉座標"))
	m.HandleText(text("深澳線"))
	reply := m.HandleText(text("k1+1500"))
	require.NotNil(t, reply)
	loc, ok := reply.Messages[1].(bot.LocationMessage)
	require.True(t, ok)
	// k1+1500 normalizes to the canonical K2+500.
	assert.Equal(t, "深澳線 K2+500", loc.Title)
}

func TestMachine_CoordinateToChainageFlow(t *testing.T) {
	m, sessions, _ := newTestMachine()

	reply := m.HandleText(text("座標轉里程"))
	assert.Contains(t, firstText(t, reply), "請提供經度")

	reply = m.HandleText(text("121.71"))
	assert.Contains(t, firstText(t, reply), "請提供緯度")
	assert.Equal(t, StageAwaitingLatitude, sessions.Get(src).Stage)

	reply = m.HandleText(text("25.025"))
	assert.Contains(t, firstText(t, reply), "這個地點為 平溪線 K1+000")
	assert.Nil(t, sessions.Get(src))
}

func TestMachine_TwoNumberShortcut(t *testing.T) {
	m, sessions, _ := newTestMachine()

	m.HandleText(text("座標轉里程"))
	reply := m.HandleText(text("121.71, 25.025"))
	assert.Contains(t, firstText(t, reply), "這個地點為 平溪線 K1+000")
	assert.Nil(t, sessions.Get(src))
}

func TestMachine_LocationShareShortcut(t *testing.T) {
	m, sessions, _ := newTestMachine()

	m.HandleText(text("座標轉里程"))
	reply := m.HandleLocation(bot.LocationInput{SourceID: src, Longitude: 121.71, Latitude: 25.025})
	assert.Contains(t, firstText(t, reply), "平溪線 K1+000")
	assert.Nil(t, sessions.Get(src))
}

func TestMachine_LocationIgnoredWithoutSession(t *testing.T) {
	m, _, _ := newTestMachine()
	assert.Nil(t, m.HandleLocation(bot.LocationInput{SourceID: src, Longitude: 121.71, Latitude: 25.025}))
}

func TestMachine_ApproximateMatchAboveThreshold(t *testing.T) {
	m, _, _ := newTestMachine()

	m.HandleText(text("座標轉里程"))
	// ~111m south of 平溪線.
	reply := m.HandleText(text("121.71 24.024"))
	got := firstText(t, reply)
	// Falls outside every corridor: far offsets are reported as an
	// approximate match with the distance, not "you are here".
	assert.Contains(t, got, "距離座標最近的路線為")
	assert.Contains(t, got, "公尺")
}

func TestMachine_CancelDeletesSession(t *testing.T) {
	for _, trigger := range []string{"取消", "結束", "退出"} {
		t.Run(trigger, func(t *testing.T) {
			m, sessions, topics := newTestMachine()

			m.HandleText(text("里程轉座標"))
			reply := m.HandleText(text(trigger))
			assert.Equal(t, "已取消查詢。", firstText(t, reply))
			assert.Nil(t, sessions.Get(src))
			assert.Empty(t, topics.Get(src))

			// A later unrelated message is no longer captured.
			assert.Nil(t, m.HandleText(text("平溪線")))
		})
	}
}

func TestMachine_NewTriggerSupersedesSession(t *testing.T) {
	m, sessions, _ := newTestMachine()

	m.HandleText(text("里程轉座標"))
	m.HandleText(text("平溪線"))
	require.Equal(t, StageAwaitingChainage, sessions.Get(src).Stage)

	// Re-triggering drops the old state silently.
	reply := m.HandleText(text("座標轉里程"))
	assert.Contains(t, firstText(t, reply), "請提供經度")
	assert.Equal(t, ModeCoordinateToChainage, sessions.Get(src).Mode)
	assert.Empty(t, sessions.Get(src).Corridor)
}

func TestMachine_EmptyStore(t *testing.T) {
	m := NewMachine(corridor.NewStore(nil), NewSessionStore(), bot.NewTopicStore(), zap.NewNop())

	reply := m.HandleText(text("里程轉座標"))
	assert.Equal(t, "查無路線資料，請稍後再試。", firstText(t, reply))

	m.HandleText(text("座標轉里程"))
	reply = m.HandleText(text("121.71 25.02"))
	assert.Equal(t, "附近找不到對應的路線里程，請再確認座標。", firstText(t, reply))
}

func TestMachine_CarouselPaging(t *testing.T) {
	lines := make(map[string][]corridor.Waypoint, 13)
	for i := 0; i < 13; i++ {
		name := fmt.Sprintf("路線%02d", i)
		lines[name] = []corridor.Waypoint{
			{Chainage: 0, Longitude: 121.0 + float64(i)/100, Latitude: 25.0},
			{Chainage: 1000, Longitude: 121.01 + float64(i)/100, Latitude: 25.0},
		}
	}
	m := NewMachine(corridor.NewStore(lines), NewSessionStore(), bot.NewTopicStore(), zap.NewNop())

	reply := m.HandleText(text("里程轉座標"))
	require.Len(t, reply.Messages, 2)
	first := reply.Messages[0].(bot.CarouselMessage)
	second := reply.Messages[1].(bot.CarouselMessage)
	assert.Len(t, first.Columns, 10)
	assert.Len(t, second.Columns, 3)
	assert.Equal(t, "里程轉座標 - 選擇路線 1/2", first.AltText)
	assert.Equal(t, "里程轉座標 - 選擇路線 2/2", second.AltText)
}
