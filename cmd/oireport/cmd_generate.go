package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nikitaxru/oireport"
)

var (
	outDir   string
	password string
)

// generateCmd формирует один отчёт
var generateCmd = &cobra.Command{
	Use:   "generate [order.json]",
	Short: "Сформировать отчёт по одному заказу",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&outDir, "out", "o", ".", "каталог для готового файла")
	generateCmd.Flags().StringVarP(&password, "password", "p", "", "пароль защиты книги и листов")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	of, err := readOrder(args[0])
	if err != nil {
		return err
	}
	engine, err := oireport.NewEngine(*cfg, oireport.WithLogger(logger))
	if err != nil {
		return err
	}
	doc, err := engine.Generate(of.InspectionOrder, of.Bancadas, password)
	if err != nil {
		if oireport.IsValidation(err) {
			return fmt.Errorf("неверные данные заказа: %w", err)
		}
		return err
	}
	path, err := doc.Save(outDir)
	if err != nil {
		return err
	}
	for _, fault := range doc.StyleFaults {
		logger.Warn("⚠️ Стиль не перенесён", zap.String("fault", fault.String()))
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
