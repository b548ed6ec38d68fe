package selector

import (
	"fmt"

	"github.com/ValentinKolb/dPrim/cmd/util"
	"github.com/ValentinKolb/dPrim/lib/common"
	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	primitiveType = "atomic-long"

	SelectCmd = &cobra.Command{
		Use:   "select",
		Short: "Print the protocol chosen for a primitive",
		Long: `Resolve the requirement given by the flags to a protocol descriptor and print it.
The flags can also be set via environment variables in the format DPRIM_<flag> (e.g. DPRIM_CONSISTENCY=sequential)`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
		RunE: run,
	}
)

func init() {
	util.SetupPrimitiveFlags(SelectCmd)

	key := "type"
	SelectCmd.Flags().StringVar(&primitiveType, key, primitiveType, util.WrapString("Primitive type whose defaults apply (atomic-long, multimap)"))
}

func run(cmd *cobra.Command, _ []string) error {
	conf, err := util.GetNodeConfig(false)
	if err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}

	t, err := parseType(primitiveType)
	if err != nil {
		return err
	}

	// requirements set neither by flag nor by DPRIM_<flag> keep the defaults of the primitive type
	if !viper.IsSet("consistency") {
		conf.Requirement.Consistency = 0
	}
	if !viper.IsSet("persistence") {
		conf.Requirement.Persistence = 0
	}
	if !viper.IsSet("replication") {
		conf.Requirement.Replication = 0
	}

	opts := conf.Options(t)
	desc, err := opts.Protocol()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "requirement: %s\n", opts.Requirement())
	fmt.Fprintf(cmd.OutOrStdout(), "protocol:    %s\n", desc)
	return nil
}

func parseType(name string) (primitive.Type, error) {
	switch name {
	case primitive.TypeAtomicLong.Name:
		return primitive.TypeAtomicLong, nil
	case primitive.TypeMultimap.Name:
		return primitive.TypeMultimap, nil
	default:
		return primitive.Type{}, primitive.NewError(primitive.RetCInvalidConfiguration, fmt.Sprintf("unknown primitive type %q", name))
	}
}
