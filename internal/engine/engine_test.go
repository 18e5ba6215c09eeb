package engine

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/apperr"
	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRuntime struct{ mock.Mock }

func (m *mockRuntime) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*ai.GenerateResponse)
	return resp, args.Error(1)
}

func reply(content string) *ai.GenerateResponse {
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: content}}}}
}

func salesTable() *table.Table {
	return table.New("sales.csv", []string{"country", "sales"}, [][]string{
		{"US", "100"},
		{"UK", "200"},
		{"US", "300"},
	})
}

const avgPlan = `{"output":"text","steps":[{"op":"aggregate","aggregations":[{"column":"sales","func":"mean","as":"avg_sales"}]}],"answer":"The average sales value is {avg_sales}."}`

func TestChatAverageSalesIsText(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Generate", mock.Anything, mock.Anything).Return(reply(avgPlan), nil).Once()

	e := New(rt, Options{Model: "llama3-70b-8192", SaveCode: true}, nil)
	res, err := e.Chat(context.Background(), salesTable(), Query{Text: "What's the average sales value?", Intent: IntentTextual})
	require.NoError(t, err)
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "The average sales value is 200.", res.Text)
	assert.Contains(t, res.Code, `"op": "aggregate"`)
	rt.AssertExpectations(t)
}

func TestChatCodeTravelsWithEachResult(t *testing.T) {
	asking := func(question string) any {
		return mock.MatchedBy(func(req ai.GenerateRequest) bool {
			return len(req.Messages) == 2 && strings.Contains(req.Messages[1].Content, "[QUESTION]\n"+question+"\n")
		})
	}
	rt := &mockRuntime{}
	rt.On("Generate", mock.Anything, asking("average")).Return(reply(avgPlan), nil)
	rt.On("Generate", mock.Anything, asking("nothing")).Return(reply(`{"output":"none","steps":[{"op":"select","columns":["country"]}]}`), nil)

	e := New(rt, Options{Model: "m", SaveCode: true}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := e.Chat(context.Background(), salesTable(), Query{Text: "average", Intent: IntentTextual})
			assert.NoError(t, err)
			assert.Contains(t, res.Code, `"func": "mean"`)
		}()
		go func() {
			defer wg.Done()
			res, err := e.Chat(context.Background(), salesTable(), Query{Text: "nothing", Intent: IntentTextual})
			assert.NoError(t, err)
			assert.Equal(t, KindNone, res.Kind)
			assert.Contains(t, res.Code, `"op": "select"`)
		}()
	}
	wg.Wait()
}

func TestChatBarChartByCountry(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Generate", mock.Anything, mock.Anything).Return(reply("```json\n"+`{"output":"chart","steps":[{"op":"group","by":["country"],"aggregations":[{"column":"sales","func":"sum","as":"total_sales"}]}],"chart":{"type":"bar","x":"country","y":["total_sales"]}}`+"\n```"), nil).Once()

	e := New(rt, Options{}, nil)
	res, err := e.Chat(context.Background(), salesTable(), Query{Text: "Show total sales by country as a bar chart", Intent: IntentVisual})
	require.NoError(t, err)
	require.Equal(t, KindChart, res.Kind)
	require.NotNil(t, res.Chart)
	assert.Equal(t, []string{"US", "UK"}, res.Chart.Labels)
	require.Len(t, res.Chart.Series, 1)
	assert.Equal(t, []float64{400, 200}, res.Chart.Series[0].Values)
	assert.NotEmpty(t, res.Chart.HTML)
	assert.Empty(t, res.Chart.Path)
	assert.Empty(t, res.Code)
}

func TestChatPromptCarriesIntentAndQuestion(t *testing.T) {
	rt := &mockRuntime{}
	var got ai.GenerateRequest
	rt.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(ai.GenerateRequest)
	}).Return(reply(`{"output":"none"}`), nil).Once()

	e := New(rt, Options{Model: "m", MaxTokens: 256, Temperature: 0.1}, nil)
	_, err := e.Chat(context.Background(), salesTable(), Query{Text: "plot sales", Intent: IntentVisual})
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "m", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, `"op": "filter"`)
	assert.Contains(t, got.Messages[1].Content, "[DATASET SUMMARY]")
	assert.Contains(t, got.Messages[1].Content, `"country", "sales"`)
	assert.Contains(t, got.Messages[1].Content, `Prefer "output": "chart"`)
	assert.Contains(t, got.Messages[1].Content, "[QUESTION]\nplot sales")
}

func TestChatNoResult(t *testing.T) {
	for name, content := range map[string]string{
		"empty reply":  "   ",
		"none output":  `{"output":"none"}`,
		"text no rows": `{"output":"text","steps":[{"op":"filter","column":"country","value":"FR"}],"answer":"Top is {country}"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rt := &mockRuntime{}
			rt.On("Generate", mock.Anything, mock.Anything).Return(reply(content), nil).Once()
			res, err := New(rt, Options{}, nil).Chat(context.Background(), salesTable(), Query{Text: "q", Intent: IntentTextual})
			require.NoError(t, err)
			assert.Equal(t, KindNone, res.Kind)
		})
	}
}

func TestChatFailuresAreAnalysisErrors(t *testing.T) {
	cases := map[string]func(*mockRuntime){
		"runtime error": func(rt *mockRuntime) {
			rt.On("Generate", mock.Anything, mock.Anything).Return(nil, &ai.RateLimitError{APIError: &ai.APIError{Message: "slow down"}}).Once()
		},
		"prose reply": func(rt *mockRuntime) {
			rt.On("Generate", mock.Anything, mock.Anything).Return(reply("I cannot help with that."), nil).Once()
		},
		"unknown column": func(rt *mockRuntime) {
			rt.On("Generate", mock.Anything, mock.Anything).Return(reply(`{"output":"table","steps":[{"op":"sort","column":"revenue"}]}`), nil).Once()
		},
		"chart without spec": func(rt *mockRuntime) {
			rt.On("Generate", mock.Anything, mock.Anything).Return(reply(`{"output":"chart","steps":[{"op":"limit","n":2}]}`), nil).Once()
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			rt := &mockRuntime{}
			setup(rt)
			tbl := salesTable()
			before := tbl.Fingerprint()

			_, err := New(rt, Options{}, nil).Chat(context.Background(), tbl, Query{Text: "q", Intent: IntentTextual})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.AnalysisError))
			assert.Equal(t, before, tbl.Fingerprint())
			rt.AssertNumberOfCalls(t, "Generate", 1)
		})
	}
}

func TestChatRuntimeErrorKeepsType(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Generate", mock.Anything, mock.Anything).Return(nil, &ai.AuthError{APIError: &ai.APIError{Message: "bad key"}}).Once()
	_, err := New(rt, Options{}, nil).Chat(context.Background(), salesTable(), Query{Text: "q"})
	var ae *ai.AuthError
	assert.True(t, errors.As(err, &ae))
}

func TestChatRejectsBadInput(t *testing.T) {
	rt := &mockRuntime{}
	e := New(rt, Options{}, nil)
	_, err := e.Chat(context.Background(), nil, Query{Text: "q"})
	assert.True(t, apperr.Is(err, apperr.AnalysisError))
	_, err = e.Chat(context.Background(), salesTable(), Query{Text: "  "})
	assert.True(t, apperr.Is(err, apperr.AnalysisError))
	_, err = New(nil, Options{}, nil).Chat(context.Background(), salesTable(), Query{Text: "q"})
	assert.True(t, apperr.Is(err, apperr.AnalysisError))
	rt.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestChatCache(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Generate", mock.Anything, mock.Anything).Return(reply(avgPlan), nil).Once()
	e := New(rt, Options{EnableCache: true}, nil)
	q := Query{Text: "average sales", Intent: IntentTextual}

	first, err := e.Chat(context.Background(), salesTable(), q)
	require.NoError(t, err)
	second, err := e.Chat(context.Background(), salesTable(), q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	rt.AssertNumberOfCalls(t, "Generate", 1)
}

func TestChatWithoutCacheCallsEveryTime(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Generate", mock.Anything, mock.Anything).Return(reply(avgPlan), nil).Twice()
	e := New(rt, Options{}, nil)
	q := Query{Text: "average sales", Intent: IntentTextual}
	_, _ = e.Chat(context.Background(), salesTable(), q)
	_, _ = e.Chat(context.Background(), salesTable(), q)
	rt.AssertNumberOfCalls(t, "Generate", 2)
}

func TestChatSaveCharts(t *testing.T) {
	dir := t.TempDir()
	rt := &mockRuntime{}
	rt.On("Generate", mock.Anything, mock.Anything).Return(reply(`{"output":"chart","chart":{"type":"pie","x":"country","y":["sales"]}}`), nil).Once()

	res, err := New(rt, Options{SaveCharts: true, ChartsDir: dir}, nil).Chat(context.Background(), salesTable(), Query{Text: "pie", Intent: IntentVisual})
	require.NoError(t, err)
	require.Equal(t, KindChart, res.Kind)
	require.NotEmpty(t, res.Chart.Path)
	b, err := os.ReadFile(res.Chart.Path)
	require.NoError(t, err)
	assert.Equal(t, res.Chart.HTML, b)
}

func TestTextResultShapes(t *testing.T) {
	one := table.New("", []string{"n"}, [][]string{{"42"}})
	assert.Equal(t, Result{Kind: KindText, Text: "42"}, textResult("", one))

	many := salesTable()
	assert.Equal(t, KindTable, textResult("", many).Kind)
	assert.Equal(t, "Sales trend is up.", textResult("Sales trend is up.", many).Text)
	assert.Equal(t, "US sold 100 ({missing})", textResult("{country} sold {SALES} ({missing})", many).Text)

	empty := table.New("", []string{"n"}, nil)
	assert.Equal(t, KindNone, textResult("", empty).Kind)
}

func TestParseIntent(t *testing.T) {
	in, err := ParseIntent(" Visual ")
	require.NoError(t, err)
	assert.Equal(t, IntentVisual, in)
	in, err = ParseIntent("text")
	require.NoError(t, err)
	assert.Equal(t, IntentTextual, in)
	_, err = ParseIntent("audio")
	assert.Error(t, err)
}
