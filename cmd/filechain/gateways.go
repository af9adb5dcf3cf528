package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// defaultGateways are public IPFS gateways probed when --gateway is not given.
var defaultGateways = []string{
	contentstore.DefaultIPFSGatewayURL,
	"https://ipfs.io",
	"https://dweb.link",
	"https://cloudflare-ipfs.com",
	"https://gateway.pinata.cloud",
	"https://w3s.link",
}

type probeResult struct {
	gateway string
	status  int
	bytes   int64
	err     string
	latency time.Duration
}

func (r probeResult) ok() bool { return r.err == "" && r.status == http.StatusOK }

var (
	probeGateways []string
	probeTimeout  time.Duration
	probeWorkers  int
)

var gatewaysCmd = &cobra.Command{
	Use:   "gateways <cid>",
	Short: "Check which IPFS gateways can serve a CID",
	Long: `gateways requests {gateway}/ipfs/{cid} from each gateway concurrently and
reports status and latency. Use it to pick store.ipfs.gateway_url.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !contentstore.ValidCID(args[0]) {
			return fmt.Errorf("invalid cid %q", args[0])
		}
		client := &http.Client{Timeout: probeTimeout}
		results := probeAll(cmd.Context(), client, probeGateways, args[0], probeWorkers)

		rows := pterm.TableData{{"GATEWAY", "STATUS", "BYTES", "LATENCY"}}
		served := 0
		for _, r := range results {
			status := strconv.Itoa(r.status)
			if r.err != "" {
				status = r.err
			}
			if r.ok() {
				served++
				status = pterm.Green(status)
			}
			rows = append(rows, []string{r.gateway, status, strconv.FormatInt(r.bytes, 10), r.latency.Round(time.Millisecond).String()})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}
		pterm.Info.Printfln("%d of %d gateways served %s", served, len(results), args[0])
		return nil
	},
}

func init() {
	gatewaysCmd.Flags().StringSliceVar(&probeGateways, "gateway", defaultGateways, "gateway base URLs to probe")
	gatewaysCmd.Flags().DurationVar(&probeTimeout, "timeout", 8*time.Second, "per-gateway timeout")
	gatewaysCmd.Flags().IntVar(&probeWorkers, "workers", 8, "concurrent probes")
	rootCmd.AddCommand(gatewaysCmd)
}

// probeAll fetches cid from every gateway with a bounded worker pool and
// returns the results fastest first, failures last.
func probeAll(ctx context.Context, client *http.Client, gateways []string, cid string, workers int) []probeResult {
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan string, len(gateways))
	results := make(chan probeResult, len(gateways))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for gw := range jobs {
				results <- probeGateway(ctx, client, gw, cid)
			}
		}()
	}
	for _, gw := range gateways {
		jobs <- gw
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []probeResult
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ok() != out[j].ok() {
			return out[i].ok()
		}
		return out[i].latency < out[j].latency
	})
	return out
}

func probeGateway(ctx context.Context, client *http.Client, gateway, cid string) probeResult {
	gateway = strings.TrimRight(gateway, "/")
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway+"/ipfs/"+cid, nil)
	if err != nil {
		return probeResult{gateway: gateway, err: err.Error()}
	}
	req.Header.Set("User-Agent", "filechain-probe/"+version)

	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		msg := err.Error()
		if len(msg) > 60 {
			msg = msg[:60] + "..."
		}
		return probeResult{gateway: gateway, err: msg, latency: latency}
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<20))
	return probeResult{
		gateway: gateway,
		status:  resp.StatusCode,
		bytes:   n,
		latency: time.Since(start),
	}
}
