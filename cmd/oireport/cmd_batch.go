package main

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nikitaxru/oireport"
)

var (
	jobs        int
	metricsFile string
)

// batchCmd формирует отчёты по набору заказов параллельно
var batchCmd = &cobra.Command{
	Use:   "batch [order.json...]",
	Short: "Сформировать отчёты по нескольким заказам",
	Long: `Каждый заказ формируется независимо на одном движке; шаблон читается один раз.
Аргументы могут быть glob-шаблонами (orders/*.json).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&outDir, "out", "o", ".", "каталог для готовых файлов")
	batchCmd.Flags().StringVarP(&password, "password", "p", "", "пароль защиты книги и листов")
	batchCmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "число параллельных генераций")
	batchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "файл метрик для textfile-коллектора")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if jobs < 1 {
		return fmt.Errorf("--jobs должен быть не меньше 1, получено %d", jobs)
	}
	var files []string
	for _, a := range args {
		matches, err := filepath.Glob(a)
		if err != nil {
			return fmt.Errorf("шаблон %q: %w", a, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("нет файлов заказов")
	}

	metrics := oireport.NewMetrics()
	engine, err := oireport.NewEngine(*cfg, oireport.WithLogger(logger), oireport.WithMetrics(metrics))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	paths := make([]string, len(files))
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			of, err := readOrder(file)
			if err != nil {
				return err
			}
			doc, err := engine.Generate(of.InspectionOrder, of.Bancadas, password)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			paths[i], err = doc.Save(outDir)
			return err
		})
	}
	err = g.Wait()

	if metricsFile != "" {
		if werr := metrics.WriteTextfile(metricsFile); werr != nil {
			logger.Warn("⚠️ Не удалось записать метрики", zap.Error(werr))
		}
	}
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	logger.Info("✅ Пакет сформирован", zap.Int("orders", len(files)))
	return nil
}
