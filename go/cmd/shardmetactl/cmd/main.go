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

// Package cmd implements shardmetactl, an operator tool for inspecting and
// editing the distributed object registry.
package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shardine.io/shardine/go/sdb/log"
	"shardine.io/shardine/go/sdb/sdberrors"
	"shardine.io/shardine/go/sdb/shardmeta"
	"shardine.io/shardine/go/sdb/sqltree"
)

var registryPath string

// Main returns the root command of shardmetactl.
func Main() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shardmetactl",
		Short:         "Inspects and edits the distributed object registry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run:           func(cmd *cobra.Command, _ []string) { cmd.Help() },
	}

	rootCmd.PersistentFlags().StringVarP(
		&registryPath,
		"registry", "r",
		"shardmeta.db",
		"path of the object registry database")
	rootCmd.MarkPersistentFlagFilename("registry")
	log.RegisterFlags(rootCmd.PersistentFlags())

	viper.SetEnvPrefix("shardmetactl")
	viper.BindEnv("registry")
	viper.BindPFlag("registry", rootCmd.PersistentFlags().Lookup("registry"))

	rootCmd.AddCommand(List())
	rootCmd.AddCommand(Mark())
	rootCmd.AddCommand(Unmark())

	return rootCmd
}

func openRegistry(cmd *cobra.Command) (*shardmeta.Registry, error) {
	return shardmeta.OpenRegistry(cmd.Context(), viper.GetString("registry"))
}

// parseAddress parses classid, objid and an optional objsubid argument.
func parseAddress(args []string) (shardmeta.ObjectAddress, error) {
	var addr shardmeta.ObjectAddress

	classID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return addr, sdberrors.Errorf(sdberrors.InvalidArgument, "bad class id %q: %v", args[0], err)
	}
	objID, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return addr, sdberrors.Errorf(sdberrors.InvalidArgument, "bad object id %q: %v", args[1], err)
	}
	addr.ClassID = uint32(classID)
	addr.ObjectID = sqltree.ObjectID(objID)

	if len(args) > 2 {
		subID, err := strconv.ParseInt(args[2], 10, 32)
		if err != nil {
			return addr, sdberrors.Errorf(sdberrors.InvalidArgument, "bad sub-object id %q: %v", args[2], err)
		}
		addr.SubID = int32(subID)
	}
	return addr, nil
}
