// Package console is a line-oriented terminal surface for the product service.
package console

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/abgdnv/productroom/internal/service"
	applog "github.com/abgdnv/productroom/pkg/logger"
	"github.com/fatih/color"
)

const helpText = `Commands:
  name <text>       set the product name
  quantity <text>   set the quantity (alias: qty)
  add               add a product from the fields, then clear them
  search            show only products with the current name
  delete            delete every product with the current name
  clear             clear the fields
  show              print the fields and the product list
  help              print this help
  quit              leave (alias: exit)
`

// Console keeps the two input fields and turns commands into service operations.
type Console struct {
	svc    service.ProductService
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	header *color.Color
	prompt *color.Color

	// guards the fields and out, which the render loop writes concurrently
	mu       sync.Mutex
	name     string
	quantity string
}

func New(svc service.ProductService, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{
		svc:    svc,
		in:     in,
		out:    out,
		logger: applog.Component(logger, "console"),
		header: color.New(color.FgCyan, color.Bold),
		prompt: color.New(color.FgGreen),
	}
}

// Fields returns the current name and quantity input.
func (c *Console) Fields() (name, quantity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.quantity
}

// Dispatch executes one command line and reports whether the console should quit.
func (c *Console) Dispatch(line string) bool {
	line = strings.TrimSuffix(line, "\r")
	cmd, arg, _ := strings.Cut(line, " ")

	c.mu.Lock()
	defer c.mu.Unlock()
	switch strings.ToLower(cmd) {
	case "":
	case "name":
		c.name = arg
	case "quantity", "qty":
		c.quantity = arg
	case "add":
		c.svc.AddProduct(c.name, c.quantity)
		c.name, c.quantity = "", ""
	case "search":
		c.svc.FindProduct(c.name)
	case "delete":
		c.svc.DeleteProduct(c.name)
	case "clear":
		c.name, c.quantity = "", ""
	case "show":
		fmt.Fprintf(c.out, "Product Name: %s\nQuantity: %s\n", c.name, c.quantity)
		c.render(c.svc.DisplayList())
	case "help":
		fmt.Fprint(c.out, helpText)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q, type help\n", cmd)
	}
	return false
}

// Render prints products as an ID / Product / Quantity table.
func (c *Console) Render(products []service.ProductDto) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render(products)
}

func (c *Console) render(products []service.ProductDto) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tProduct\tQuantity")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", strconv.FormatInt(p.ID, 10), p.ProductName, strconv.FormatInt(int64(p.Quantity), 10))
	}
	_ = tw.Flush()

	head, rows, _ := strings.Cut(buf.String(), "\n")
	c.header.Fprintln(c.out, head)
	fmt.Fprint(c.out, rows)
	if len(products) == 0 {
		fmt.Fprintln(c.out, "(no products)")
	}
}

// Run renders every display change and executes commands read from the input
// until ctx is done, the input ends, or quit is entered.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for products := range c.svc.SubscribeDisplay(ctx) {
			c.Render(products)
		}
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.logger.InfoContext(ctx, "Console ready")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("failed to read console input: %w", err)
			}
			return nil
		case line := <-lines:
			if c.Dispatch(line) {
				return nil
			}
			c.mu.Lock()
			c.prompt.Fprint(c.out, "> ")
			c.mu.Unlock()
		}
	}
}
