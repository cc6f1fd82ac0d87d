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
	"github.com/spf13/cobra"

	"shardine.io/shardine/go/sdb/log"
)

func runMark(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args)
	if err != nil {
		return err
	}
	registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer registry.Close()

	if err := registry.MarkDistributed(cmd.Context(), addr); err != nil {
		return err
	}
	log.Infof("marked object %d/%d/%d as distributed", addr.ClassID, addr.ObjectID, addr.SubID)
	return nil
}

// Mark returns the mark subcommand.
func Mark() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <classid> <objid> [objsubid]",
		Short: "Marks an object as distributed",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runMark,
	}
}
