package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ome-contrib/omebatch/internal/omero"
)

// refFlag collects container references into a shared ordered list. The three
// reference flags (-p, -d, -i) append to the same slice, so mixed references
// are processed in the order they appeared on the command line.
type refFlag struct {
	typeName string
	refs     *[]omero.Ref
}

func (f *refFlag) String() string { return "" }

func (f *refFlag) Type() string { return "id" }

func (f *refFlag) Set(v string) error {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s ID %q", f.typeName, v)
	}
	*f.refs = append(*f.refs, omero.Ref{Type: f.typeName, ID: id})
	return nil
}

// registerRefFlags adds the -p/-d/-i reference flags to cmd, all appending to
// refs in command-line order.
func registerRefFlags(cmd *cobra.Command, refs *[]omero.Ref) {
	cmd.Flags().VarP(&refFlag{typeName: omero.TypeProject, refs: refs}, "project", "p", "Project ID to expand (repeatable)")
	cmd.Flags().VarP(&refFlag{typeName: omero.TypeDataset, refs: refs}, "dataset", "d", "Dataset ID to expand (repeatable)")
	cmd.Flags().VarP(&refFlag{typeName: omero.TypeImage, refs: refs}, "image", "i", "Image ID to process (repeatable)")
}
