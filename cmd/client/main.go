package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/server"
)

var errUsage = errors.New("usage")

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func main() {
	serverAddr := flag.String("addr", "localhost:50051", "The server address in the format host:port")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-command timeout")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to server")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, api.NewRuneBookClient(conn), flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		} else {
			log.Error().Err(err).Msg("Command failed")
		}
		cancel()
		conn.Close()
		os.Exit(1)
	}
}

// run executes one command against client and writes its output to out
func run(ctx context.Context, client api.RuneBookClient, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]

	switch command {
	case "place-order":
		if len(args) != 5 {
			return fmt.Errorf("%w: place-order <rune> <side> <amount> <price> <address>", errUsage)
		}
		return placeOrder(ctx, client, out, &api.PlaceOrderRequest{
			RuneID:  args[0],
			Side:    args[1],
			Amount:  args[2],
			Price:   args[3],
			Address: args[4],
		})
	case "get-order":
		if len(args) != 1 {
			return fmt.Errorf("%w: get-order <id>", errUsage)
		}
		resp, err := client.GetOrder(ctx, &api.GetOrderRequest{OrderID: args[0]})
		if err != nil {
			return err
		}
		printOrders(out, resp.Order)
		return nil
	case "cancel-order":
		if len(args) != 1 {
			return fmt.Errorf("%w: cancel-order <id>", errUsage)
		}
		resp, err := client.CancelOrder(ctx, &api.CancelOrderRequest{OrderID: args[0]})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", yellow("Cancelled"), resp.Order.ID)
		return nil
	case "orders":
		if len(args) != 1 {
			return fmt.Errorf("%w: orders <address>", errUsage)
		}
		resp, err := client.GetOrdersByAddress(ctx, &api.GetOrdersByAddressRequest{Address: args[0]})
		if err != nil {
			return err
		}
		printOrders(out, resp.Orders...)
		return nil
	case "book":
		fs := flag.NewFlagSet("book", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		depth := fs.Int("depth", 20, "Orders shown per side")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return fmt.Errorf("%w: book [--depth=N] <rune>", errUsage)
		}
		resp, err := client.GetOrderBook(ctx, &api.GetOrderBookRequest{RuneID: fs.Arg(0), Depth: int32(*depth)})
		if err != nil {
			return err
		}
		return printBook(out, resp)
	case "stats":
		resp, err := client.GetStats(ctx, &api.GetStatsRequest{})
		if err != nil {
			return err
		}
		return printStats(out, resp)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func placeOrder(ctx context.Context, client api.RuneBookClient, out io.Writer, req *api.PlaceOrderRequest) error {
	var trailer metadata.MD
	resp, err := client.PlaceOrder(ctx, req, grpc.Trailer(&trailer))
	if err != nil {
		if ids := trailer.Get(server.OrderIDTrailer); len(ids) > 0 {
			return fmt.Errorf("order %s: %s", ids[0], status.Convert(err).Message())
		}
		return err
	}

	fmt.Fprintf(out, "%s %s (%s)\n", green("Placed"), resp.OrderID, resp.Order.Status)
	for _, t := range resp.Trades {
		fmt.Fprintf(out, "  %s %s @ %s buy=%s sell=%s tx=%s\n",
			cyan("trade"), t.Amount, t.Price, t.BuyOrderID, t.SellOrderID, t.TxRef)
	}
	return nil
}

func printOrders(out io.Writer, orders ...*api.Order) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		cyan("ID"), cyan("Rune"), cyan("Side"), cyan("Remaining"), cyan("Filled"), cyan("Price"), cyan("Status"))
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.RuneID, sideLabel(o.Side), o.Amount, o.FilledAmount, o.Price, o.Status)
	}
	w.Flush()
}

func sideLabel(side string) string {
	if side == "sell" {
		return red("SELL")
	}
	return green("BUY")
}

func printBook(out io.Writer, book *api.OrderBookResponse) error {
	fmt.Fprintf(out, "%s %s\n", cyan("Book"), book.RuneID)
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", cyan("Price"), cyan("Amount"), cyan("Address"), cyan("Side"))
	// asks best-last so the spread sits in the middle
	for i := len(book.Asks) - 1; i >= 0; i-- {
		o := book.Asks[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", o.Price, o.Amount, o.Address, red("ASK"))
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", "-----", "------", "-------", "----")
	for _, o := range book.Bids {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", o.Price, o.Amount, o.Address, green("BID"))
	}
	return w.Flush()
}

func printStats(out io.Writer, stats *api.StatsResponse) error {
	fmt.Fprintf(out, "%s orders=%d runes=%d batches=%d/%d ok, avg size %.2f, avg %.3fms\n",
		cyan("Engine"), stats.Orders, stats.Runes,
		stats.SuccessfulBatches, stats.TotalBatches,
		stats.AverageBatchSize, stats.AverageProcessingMillis)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		cyan("Operation"), cyan("Count"), cyan("Failures"), cyan("p50µs"), cyan("p90µs"), cyan("p99µs"), cyan("maxµs"))
	for _, op := range stats.Operations {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			op.Operation, op.Count, op.Failures, op.P50Micros, op.P90Micros, op.P99Micros, op.MaxMicros)
	}
	return w.Flush()
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: client [--addr=host:port] [--timeout=10s] <command> [args]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  place-order <rune> <side> <amount> <price> <address>")
	fmt.Fprintln(out, "  get-order <id>")
	fmt.Fprintln(out, "  cancel-order <id>")
	fmt.Fprintln(out, "  orders <address>")
	fmt.Fprintln(out, "  book [--depth=N] <rune>")
	fmt.Fprintln(out, "  stats")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  place-order 840000:1 sell 1000 1000 bc1qseller")
	fmt.Fprintln(out, "  place-order 840000:1 buy 1000 1000 bc1qbuyer")
	fmt.Fprintln(out, "  book --depth=5 840000:1")
}
