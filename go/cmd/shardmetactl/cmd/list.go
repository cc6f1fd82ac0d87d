/*
Copyright 2026 The Shardine Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func runList(cmd *cobra.Command, args []string) error {
	registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer registry.Close()

	addrs, err := registry.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no distributed objects")
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Class", "Object", "SubID"})
	for _, addr := range addrs {
		table.Append([]string{
			strconv.FormatUint(uint64(addr.ClassID), 10),
			strconv.FormatUint(uint64(addr.ObjectID), 10),
			strconv.FormatInt(int64(addr.SubID), 10),
		})
	}
	table.Render()
	return nil
}

// List returns the list subcommand.
func List() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists all objects marked as distributed",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}
