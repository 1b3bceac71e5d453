package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/productroom/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProductService struct {
	mock.Mock
}

func (m *mockProductService) AddProduct(name, quantityText string) *service.Task[service.ProductDto] {
	m.Called(name, quantityText)
	return nil
}

func (m *mockProductService) DeleteProduct(name string) *service.Task[int64] {
	m.Called(name)
	return nil
}

func (m *mockProductService) FindProduct(name string) *service.Task[[]service.ProductDto] {
	m.Called(name)
	return nil
}

func (m *mockProductService) DisplayList() []service.ProductDto {
	return m.Called().Get(0).([]service.ProductDto)
}

func (m *mockProductService) AllProducts() []service.ProductDto {
	return m.Called().Get(0).([]service.ProductDto)
}

func (m *mockProductService) SubscribeDisplay(ctx context.Context) <-chan []service.ProductDto {
	return m.Called(ctx).Get(0).(<-chan []service.ProductDto)
}

// syncBuffer is a bytes.Buffer safe for the render goroutine and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newConsole(svc service.ProductService, in io.Reader, out io.Writer) *Console {
	c := New(svc, in, out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.header.DisableColor()
	c.prompt.DisableColor()
	return c
}

func Test_Console_Dispatch(t *testing.T) {
	testCases := []struct {
		name         string
		lines        []string
		setup        func(m *mockProductService)
		wantName     string
		wantQuantity string
		wantQuit     bool
	}{
		{
			name:         "fields are set verbatim",
			lines:        []string{"name Big  Widget ", "qty 12"},
			wantName:     "Big  Widget ",
			wantQuantity: "12",
		},
		{
			name:  "add submits and resets the fields",
			lines: []string{"name Widget", "quantity abc", "add"},
			setup: func(m *mockProductService) {
				m.On("AddProduct", "Widget", "abc").Once()
			},
		},
		{
			name:  "search keeps the fields",
			lines: []string{"name Gadget", "quantity 3", "search"},
			setup: func(m *mockProductService) {
				m.On("FindProduct", "Gadget").Once()
			},
			wantName:     "Gadget",
			wantQuantity: "3",
		},
		{
			name:  "delete keeps the fields",
			lines: []string{"name Gadget", "delete"},
			setup: func(m *mockProductService) {
				m.On("DeleteProduct", "Gadget").Once()
			},
			wantName: "Gadget",
		},
		{
			name:  "clear only touches the fields",
			lines: []string{"name Gadget", "quantity 3", "clear"},
		},
		{
			name:     "quit",
			lines:    []string{"name Gadget", "QUIT"},
			wantName: "Gadget",
			wantQuit: true,
		},
		{
			name:     "exit",
			lines:    []string{"exit"},
			wantQuit: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := new(mockProductService)
			if tc.setup != nil {
				tc.setup(svc)
			}
			c := newConsole(svc, strings.NewReader(""), io.Discard)

			// when
			var quit bool
			for _, line := range tc.lines {
				quit = c.Dispatch(line)
			}

			// then
			name, quantity := c.Fields()
			assert.Equal(t, tc.wantName, name)
			assert.Equal(t, tc.wantQuantity, quantity)
			assert.Equal(t, tc.wantQuit, quit)
			svc.AssertExpectations(t)
		})
	}
}

func Test_Console_Render(t *testing.T) {
	testCases := []struct {
		name     string
		products []service.ProductDto
		expected string
	}{
		{
			name: "rows",
			products: []service.ProductDto{
				{ID: 1, ProductName: "Widget", Quantity: 5},
				{ID: 2, ProductName: "Gadget", Quantity: 0},
			},
			expected: "ID  Product  Quantity\n1   Widget   5\n2   Gadget   0\n",
		},
		{
			name:     "empty",
			products: []service.ProductDto{},
			expected: "ID  Product  Quantity\n(no products)\n",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			c := newConsole(new(mockProductService), strings.NewReader(""), &out)

			c.Render(tc.products)

			assert.Equal(t, tc.expected, out.String())
		})
	}
}

func Test_Console_ShowAndUnknown(t *testing.T) {
	// given
	svc := new(mockProductService)
	svc.On("DisplayList").Return([]service.ProductDto{{ID: 3, ProductName: "Widget", Quantity: 1}})
	var out bytes.Buffer
	c := newConsole(svc, strings.NewReader(""), &out)

	// when
	c.Dispatch("name Widget")
	c.Dispatch("show")
	c.Dispatch("frobnicate now")

	// then
	assert.Contains(t, out.String(), "Product Name: Widget\nQuantity: \n")
	assert.Contains(t, out.String(), "3   Widget   1\n")
	assert.Contains(t, out.String(), `unknown command "frobnicate"`)
}

func Test_Console_Run(t *testing.T) {
	// given
	display := make(chan []service.ProductDto, 1)
	display <- []service.ProductDto{{ID: 1, ProductName: "Widget", Quantity: 5}}
	svc := new(mockProductService)
	svc.On("SubscribeDisplay", mock.Anything).Return((<-chan []service.ProductDto)(display)).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		go func() {
			<-ctx.Done()
			close(display)
		}()
	})
	svc.On("AddProduct", "Gadget", "2").Once()
	out := &syncBuffer{}
	in := strings.NewReader("name Gadget\nqty 2\nadd\nquit\nname ignored\n")
	c := newConsole(svc, in, out)

	// when
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.Run(ctx)

	// then
	require.NoError(t, err)
	name, _ := c.Fields()
	assert.Empty(t, name)
	assert.Contains(t, out.String(), "1   Widget   5\n")
	svc.AssertExpectations(t)
}

func Test_Console_RunStopsAtEOF(t *testing.T) {
	display := make(chan []service.ProductDto)
	svc := new(mockProductService)
	svc.On("SubscribeDisplay", mock.Anything).Return((<-chan []service.ProductDto)(display)).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		go func() {
			<-ctx.Done()
			close(display)
		}()
	})
	c := newConsole(svc, strings.NewReader("clear\n"), io.Discard)

	err := c.Run(context.Background())

	assert.NoError(t, err)
}
