package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nikitaxru/oireport"
)

// catalogCmd печатает справочники формы заказа
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Показать допустимые значения Q3, Alcance, PMA и стенды",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(oireport.Catalog())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
