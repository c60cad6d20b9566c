package lunch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"anoa.com/classboard/pkg/apperror"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const neisMenu = `{"mealServiceDietInfo":[
	{"head":[{"list_total_count":1},{"RESULT":{"CODE":"INFO-000","MESSAGE":"정상 처리되었습니다."}}]},
	{"row":[{"MMEAL_SC_NM":"중식","MLSV_YMD":"20240520","DDISH_NM":"잡곡밥 <br/>돈육김치찌개 (5.9.10.13)<br/>계란말이1.5.<br/>깍두기(9)"}]}
]}`

const neisEmpty = `{"RESULT":{"CODE":"INFO-200","MESSAGE":"해당하는 데이터가 없습니다."}}`

func newService(t *testing.T, body string, calls *atomic.Int32) (LunchService, *miniredis.Miniredis) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("KEY"))
		assert.Equal(t, "J10", r.URL.Query().Get("ATPT_OFCDC_SC_CODE"))
		assert.Equal(t, "20240520", r.URL.Query().Get("MLSV_YMD"))
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewLunchService(srv.Client(), rdb, Options{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		OfficeCode: "J10",
		SchoolCode: "7530000",
		CacheTTL:   time.Hour,
	})
	return svc, mr
}

func TestMenuFromNeisIsCached(t *testing.T) {
	var calls atomic.Int32
	svc, mr := newService(t, neisMenu, &calls)

	menu, err := svc.Menu(context.Background(), "20240520")
	require.NoError(t, err)
	assert.Equal(t, []string{"잡곡밥", "돈육김치찌개", "계란말이", "깍두기"}, menu.Dishes)
	assert.Equal(t, "잡곡밥\n돈육김치찌개\n계란말이\n깍두기", menu.Text)
	assert.False(t, menu.Demo)

	again, err := svc.Menu(context.Background(), "20240520")
	require.NoError(t, err)
	assert.Equal(t, menu, again)
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, mr.Exists("lunch:J10:7530000:20240520"))
}

func TestMenuWithoutData(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newService(t, neisEmpty, &calls)

	menu, err := svc.Menu(context.Background(), "20240520")
	require.NoError(t, err)
	assert.Empty(t, menu.Dishes)
	assert.Equal(t, MsgNoMenu, menu.Text)
}

func TestMenuBadResponse(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newService(t, `<html>error</html>`, &calls)

	_, err := svc.Menu(context.Background(), "20240520")
	assert.ErrorIs(t, err, apperror.ErrMalformedResponse)
}

func TestDemoMenuWithoutKey(t *testing.T) {
	svc := NewLunchService(nil, nil, Options{})

	menu, err := svc.Menu(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, menu.Demo)
	assert.Equal(t, "잡곡밥\n돈육김치찌개\n계란말이\n맛김\n깍두기", menu.Text)
	assert.Len(t, menu.Date, 8)
}

func TestMenuRejectsBadDate(t *testing.T) {
	svc := NewLunchService(nil, nil, Options{})
	_, err := svc.Menu(context.Background(), "2024-05-20")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestSplitDishes(t *testing.T) {
	assert.Equal(t, []string{"우유", "현미밥", "닭갈비"}, SplitDishes("우유(2)<br/>현미밥<br>닭갈비5.6.13.<br/> "))
	assert.Empty(t, SplitDishes(""))
}
