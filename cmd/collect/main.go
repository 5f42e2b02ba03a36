package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/LJTian/InTheLoop/internal/config"
	"github.com/LJTian/InTheLoop/internal/di"
	"github.com/LJTian/InTheLoop/internal/logger"
	"github.com/LJTian/InTheLoop/internal/pipeline"
	"github.com/samber/do/v2"
)

// 一个仅执行一次聚合的命令行入口：刷新一次并打印每个 feed 的结果与热门话题
func main() {
	topN := flag.Int("top", 0, "number of trending topics to print (default TREND_TOP_N)")
	flag.Parse()
	os.Exit(run(*topN))
}

// run 返回进程退出码；所有 defer 在 os.Exit 之前执行
func run(topN int) int {
	cfg := config.Load()
	log := logger.Init(cfg.Debug)

	injector := di.Setup(cfg, log)
	defer func() {
		if err := di.Shutdown(injector, false); err != nil {
			log.Error("close resources failed", "error", err)
		}
	}()

	p, err := do.Invoke[*pipeline.Pipeline](injector)
	if err != nil {
		log.Error("init pipeline failed", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	listing := p.Refresh(ctx)
	report := p.LastReport()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tFEED\tSTATUS\tACCEPTED\tDROPPED")
	for _, f := range report.Feeds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", f.Category, f.URL, f.Status, f.Accepted, f.Dropped)
	}
	_ = w.Flush()

	fmt.Printf("\n%d articles aggregated at %s\n\n", listing.Total, listing.CachedAt.Format(time.RFC3339))

	trend := p.GetTrending(ctx, topN)
	if len(trend.Topics) == 0 {
		fmt.Println("no trending topics")
		return 0
	}
	for i, t := range trend.Topics {
		fmt.Printf("%2d. %s (%d mentions)\n", i+1, t.Label, t.MentionCount)
		for _, a := range t.Articles {
			fmt.Printf("      - %s [%s]\n", a.Title, a.Site)
		}
	}
	return 0
}
