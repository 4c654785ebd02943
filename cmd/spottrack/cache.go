package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/LdDl/spottrack-go/distcache"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Distance cache commands",
}

var cacheInspectCmd = &cobra.Command{
	Use:   "inspect <file-or-glob>...",
	Short: "Print the header, sizes and digest of distance cache files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheInspect,
}

var cacheVerifyCmd = &cobra.Command{
	Use:   "verify <file>...",
	Short: "Check that distance cache files decode and re-encode identically",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheVerify,
}

var cacheConvertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Rewrite a distance cache in another container",
	Args:  cobra.ExactArgs(2),
	RunE:  runCacheConvert,
}

var compressionName string

func init() {
	cacheConvertCmd.Flags().StringVar(&compressionName, "compression", "zstd", "Output container: none, zstd or lz4")

	cacheCmd.AddCommand(cacheInspectCmd)
	cacheCmd.AddCommand(cacheVerifyCmd)
	cacheCmd.AddCommand(cacheConvertCmd)
}

func runCacheInspect(cmd *cobra.Command, args []string) error {
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tCONTAINER\tVERSION\tWINDOWS\tCOMPONENTS\tENTRIES\tVALUES\tBYTES\tBLAKE3")
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrap(err, "stat distance cache")
		}
		f, kind, err := distcache.ReadFile(path)
		if err != nil {
			return err
		}
		digest, err := distcache.Digest(f)
		if err != nil {
			return err
		}
		windows := "-"
		if f.Version == distcache.VersionTimeWindowed {
			windows = fmt.Sprintf("%d x %d (overlap %g)", f.WindowCount, f.WindowDuration, f.WindowOverlap)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
			path, kind, f.Version, windows, len(f.Components), f.NumEntries(), len(f.Values), info.Size(), hex.EncodeToString(digest[:]))
	}
	return tw.Flush()
}

func runCacheVerify(cmd *cobra.Command, args []string) error {
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := verifyCache(path); err != nil {
			return errors.Wrapf(err, "verify %s", path)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
	}
	return nil
}

// verifyCache decodes path, checks that its raw layout survives a round
// trip byte for byte and that the lookup table builds.
func verifyCache(path string) error {
	f, _, err := distcache.ReadFile(path)
	if err != nil {
		return err
	}
	var first bytes.Buffer
	if err := f.Encode(&first); err != nil {
		return err
	}
	again, err := distcache.Decode(bytes.NewReader(first.Bytes()))
	if err != nil {
		return err
	}
	var second bytes.Buffer
	if err := again.Encode(&second); err != nil {
		return err
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		return errors.New("re-encoded layout differs")
	}
	_, err = distcache.New(f)
	return err
}

func runCacheConvert(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	compression, err := distcache.ParseCompression(compressionName)
	if err != nil {
		return err
	}
	f, from, err := distcache.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := distcache.WriteFile(args[1], f, compression); err != nil {
		return err
	}
	info, err := os.Stat(args[1])
	if err != nil {
		return errors.Wrap(err, "stat output")
	}
	logger.Info("converted distance cache", "input", args[0], "from", from.String(), "output", args[1], "to", compression.String(), "bytes", info.Size())
	return nil
}
