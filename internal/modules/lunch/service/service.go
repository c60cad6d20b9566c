package lunch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"anoa.com/classboard/pkg/apperror"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultBaseURL = "https://open.neis.go.kr/hub/mealServiceDietInfo"
	dateLayout     = "20060102"

	MsgNoMenu = "급식 정보가 없습니다."

	codeNoData = "INFO-200"
)

var demoDishes = []string{"잡곡밥", "돈육김치찌개", "계란말이", "맛김", "깍두기"}

var (
	allergyInParens = regexp.MustCompile(`\s*\([0-9.\s]+\)`)
	allergyTrailing = regexp.MustCompile(`\s*([0-9]+\.)+[0-9]*$`)
)

type Menu struct {
	Date   string   `json:"date"`
	Dishes []string `json:"dishes"`
	Text   string   `json:"text"`
	Demo   bool     `json:"demo,omitempty"`
}

type LunchService interface {
	// Menu returns the lunch of date (YYYYMMDD); an empty date means
	// today in Korea.
	Menu(ctx context.Context, date string) (*Menu, error)
}

type Options struct {
	BaseURL    string
	APIKey     string
	OfficeCode string
	SchoolCode string
	CacheTTL   time.Duration
}

type lunchService struct {
	http        *http.Client
	redisClient *redis.Client
	opts        Options
	now         func() time.Time
}

func NewLunchService(httpClient *http.Client, redisClient *redis.Client, opts Options) LunchService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &lunchService{http: httpClient, redisClient: redisClient, opts: opts, now: time.Now}
}

func (s *lunchService) Menu(ctx context.Context, date string) (*Menu, error) {
	if date == "" {
		date = s.now().In(Seoul).Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, apperror.New(http.StatusBadRequest, "날짜는 YYYYMMDD 형식이어야 합니다.", apperror.ErrInvalidInput)
	}

	if s.opts.APIKey == "" {
		return newMenu(date, demoDishes, true), nil
	}

	key := fmt.Sprintf("lunch:%s:%s:%s", s.opts.OfficeCode, s.opts.SchoolCode, date)
	if menu, ok := s.cached(ctx, key); ok {
		return menu, nil
	}

	menu, err := s.fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		if raw, err := json.Marshal(menu); err == nil {
			if err := s.redisClient.Set(ctx, key, raw, s.opts.CacheTTL).Err(); err != nil {
				log.Printf("[lunch] cache %s: %v", key, err)
			}
		}
	}
	return menu, nil
}

func (s *lunchService) cached(ctx context.Context, key string) (*Menu, bool) {
	if s.redisClient == nil {
		return nil, false
	}
	raw, err := s.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[lunch] read cache %s: %v", key, err)
		}
		return nil, false
	}
	var menu Menu
	if err := json.Unmarshal(raw, &menu); err != nil {
		return nil, false
	}
	return &menu, true
}

type neisResult struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

type neisResponse struct {
	Info []struct {
		Head []struct {
			Result *neisResult `json:"RESULT"`
		} `json:"head"`
		Row []struct {
			Dishes string `json:"DDISH_NM"`
			Meal   string `json:"MMEAL_SC_NM"`
		} `json:"row"`
	} `json:"mealServiceDietInfo"`
	Result *neisResult `json:"RESULT"`
}

func (s *lunchService) fetch(ctx context.Context, date string) (*Menu, error) {
	q := url.Values{
		"KEY":                {s.opts.APIKey},
		"Type":               {"json"},
		"ATPT_OFCDC_SC_CODE": {s.opts.OfficeCode},
		"SD_SCHUL_CODE":      {s.opts.SchoolCode},
		"MLSV_YMD":           {date},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("neis request: %w (%w)", apperror.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("neis read: %w (%w)", apperror.ErrNetwork, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("neis error %s: %w", resp.Status, apperror.ErrNetwork)
	}

	var parsed neisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrMalformedResponse, err)
	}
	if parsed.Result != nil && parsed.Result.Code != codeNoData {
		return nil, fmt.Errorf("%w: neis %s %s", apperror.ErrMalformedResponse, parsed.Result.Code, parsed.Result.Message)
	}

	for _, block := range parsed.Info {
		for _, row := range block.Row {
			if row.Meal != "" && row.Meal != "중식" {
				continue
			}
			return newMenu(date, SplitDishes(row.Dishes), false), nil
		}
	}
	return newMenu(date, nil, false), nil
}

// SplitDishes splits the NEIS dish cell on <br/> and strips allergy
// markers such as "(5.6.13)" or a trailing "5.6.13.".
func SplitDishes(cell string) []string {
	var dishes []string
	for _, part := range strings.Split(strings.ReplaceAll(cell, "<br>", "<br/>"), "<br/>") {
		part = allergyInParens.ReplaceAllString(part, "")
		part = allergyTrailing.ReplaceAllString(part, "")
		part = strings.TrimSpace(part)
		if part != "" {
			dishes = append(dishes, part)
		}
	}
	return dishes
}

func newMenu(date string, dishes []string, demo bool) *Menu {
	m := &Menu{Date: date, Dishes: dishes, Demo: demo}
	if len(dishes) == 0 {
		m.Dishes = []string{}
		m.Text = MsgNoMenu
		return m
	}
	m.Text = strings.Join(dishes, "\n")
	return m
}

// Seoul is the school's time zone; "today" and lunch dates use it.
var Seoul = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()
