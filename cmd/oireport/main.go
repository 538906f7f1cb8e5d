package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nikitaxru/oireport"
)

var (
	// Global flags
	configPath   string
	templatePath string
	verbose      bool

	cfg    *oireport.Config
	logger *zap.Logger
)

// rootCmd — генератор отчётов поверки (OI) по шаблону PLANTILLA_VI
var rootCmd = &cobra.Command{
	Use:   "oireport",
	Short: "Формирование Excel-отчётов заказов на поверку",
	Long: `oireport заполняет шаблон PLANTILLA_VI данными заказа (OI) и его записей стенда.

Вход — JSON заказа в форме:
  {"code": "OI-0001-2025", "q3": 2.5, "alcance": 160, "pma": 16,
   "banco_id": 3, "tech_number": 101,
   "bancadas": [{"item": 1, "medidor": "M-1", "estado": 0, "rows": 15}]}`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = oireport.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if templatePath != "" {
			cfg.TemplatePath = templatePath
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = oireport.NewLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "oireport.yaml", "файл конфигурации YAML")
	rootCmd.PersistentFlags().StringVarP(&templatePath, "template", "t", "", "путь к шаблону (перекрывает конфигурацию)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный лог")

	rootCmd.AddCommand(generateCmd, batchCmd, catalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// orderFile — заказ вместе с записями стенда, как его отдаёт API.
type orderFile struct {
	oireport.InspectionOrder
	Bancadas []oireport.TestBenchRecord `json:"bancadas"`
}

func readOrder(path string) (orderFile, error) {
	var of orderFile
	data, err := os.ReadFile(path)
	if err != nil {
		return of, err
	}
	if err := json.Unmarshal(data, &of); err != nil {
		return of, fmt.Errorf("%s: %w", path, err)
	}
	// давление всегда выводится из PMA, присланное значение не используется
	of.PressureBar, _ = oireport.PressureFor(of.PMA)
	return of, nil
}
