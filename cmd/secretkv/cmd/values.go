package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sammck/secret-kv/xjson"
)

var (
	valueFormat string
	valueJSON   bool
	valueFile   string
	valueTags   map[string]string
	listTags    bool
)

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value of a key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		mode := xjson.ModeExtended
		if valueFormat == formatSimple {
			mode = xjson.ModeSimple
		}
		v, err := s.Get(args[0], mode)
		check(err)
		check(writeValue(os.Stdout, v, valueFormat))
	},
}

var setCmd = &cobra.Command{
	Use:   "set KEY [VALUE]",
	Short: "Set the value of a key",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		if (len(args) == 2) == (valueFile != "") {
			log.Fatal("[error] give either VALUE or --file")
		}
		var arg string
		if len(args) == 2 {
			arg = args[1]
		}
		v, err := parseValue(arg, valueJSON, valueFile)
		check(err)

		s := openStore()
		defer s.Close()
		var tags map[string]string
		if cmd.Flags().Changed("tag") {
			tags = valueTags
		}
		check(s.Set(args[0], v, tags))
		fmt.Println(color.GreenString("set"), args[0])
	},
}

var delCmd = &cobra.Command{
	Use:   "del KEY",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		check(s.Delete(args[0]))
		fmt.Println(color.RedString("deleted"), args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the keys of the store",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		it, err := s.Keys()
		check(err)
		for it.Next() {
			if !listTags {
				fmt.Println(it.Key())
				continue
			}
			tags, err := s.Tags(it.Key())
			check(err)
			fmt.Println(it.Key(), color.YellowString(formatTags(tags)))
		}
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every key of the store",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		check(s.Clear())
		fmt.Println(color.RedString("cleared"), s.Project.DBFile)
	},
}

func init() {
	getCmd.Flags().StringVarP(&valueFormat, "format", "f", formatRaw, "output format: raw, json or simple")

	setCmd.Flags().BoolVar(&valueJSON, "json", false, "parse VALUE as JSON")
	setCmd.Flags().StringVar(&valueFile, "file", "", "store the content of a file as binary")
	setCmd.Flags().StringToStringVarP(&valueTags, "tag", "t", nil, "replace the tags of the key")

	listCmd.Flags().BoolVar(&listTags, "tags", false, "show tags")
}
