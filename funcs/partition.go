package funcs

import (
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rudder-engine/rudder"
)

// A Partition groups regions that share DNS suffixes and capabilities.
// Partition lookup is the one built-in function that carries auxiliary
// state, so it is registered with needsState set and models that never
// call it cost nothing.
type Partition struct {
	// ID names the partition ("aws", "aws-cn", ...).
	ID string

	// RegionRegex claims regions not listed explicitly.
	RegionRegex *regexp.Regexp

	// Regions lists the regions known to be in the partition.
	Regions map[string]bool

	// Outputs are the values a successful lookup produces.
	Outputs PartitionOutputs
}

// PartitionOutputs are the fields of the partition descriptor value.
type PartitionOutputs struct {
	Name                 string
	DNSSuffix            string
	DualStackDNSSuffix   string
	SupportsFIPS         bool
	SupportsDualStack    bool
	ImplicitGlobalRegion string
}

// PartitionMap resolves a region to a partition: an explicit region entry
// wins, then the first matching region regex, then the fallback partition.
type PartitionMap struct {
	partitions []Partition
	fallback   int
}

// NewPartitionMap builds a partition map. The fallback names the partition
// used when nothing matches; it must be present in the list.
func NewPartitionMap(partitions []Partition, fallback string) (*PartitionMap, error) {
	pm := PartitionMap{partitions: partitions, fallback: -1}
	for i, p := range partitions {
		if p.ID == fallback {
			pm.fallback = i
		}
	}
	if pm.fallback < 0 {
		return nil, errors.Errorf("fallback partition %s is not in the partition list", fallback)
	}
	return &pm, nil
}

// Resolve returns the partition for the region.
func (pm *PartitionMap) Resolve(region string) *Partition {
	for i := range pm.partitions {
		if pm.partitions[i].Regions[region] {
			return &pm.partitions[i]
		}
	}
	for i := range pm.partitions {
		re := pm.partitions[i].RegionRegex
		if re != nil && re.MatchString(region) {
			return &pm.partitions[i]
		}
	}
	return &pm.partitions[pm.fallback]
}

// NewPartitionFunc wraps a partition map as a registry function producing
// the partition descriptor value.
func NewPartitionFunc(pm *PartitionMap) rudder.Func {
	return rudder.FuncOf(func(args []rudder.Value) (rudder.Value, error) {
		if err := arity(args, 1); err != nil {
			return rudder.Absent(), err
		}
		region, err := stringArg(args, 0)
		if err != nil {
			return rudder.Absent(), err
		}
		p := pm.Resolve(region)
		out := p.Outputs
		return rudder.AttrsVal("partition", map[string]rudder.Value{
			"name":                 rudder.StringVal(out.Name),
			"dnsSuffix":            rudder.StringVal(out.DNSSuffix),
			"dualStackDnsSuffix":   rudder.StringVal(out.DualStackDNSSuffix),
			"supportsFIPS":         rudder.BoolVal(out.SupportsFIPS),
			"supportsDualStack":    rudder.BoolVal(out.SupportsDualStack),
			"implicitGlobalRegion": rudder.StringVal(out.ImplicitGlobalRegion),
		}), nil
	})
}

// ParsePartitions loads a partition map from a serialized partition
// document (YAML or JSON, the same shape the upstream partition file
// uses). The first listed partition is the fallback.
//
//	partitions:
//	  - id: aws
//	    regionRegex: "^(us|eu)\\-\\w+\\-\\d+$"
//	    regions: [us-east-1, eu-west-1]
//	    outputs:
//	      name: aws
//	      dnsSuffix: amazonaws.com
//	      ...
func ParsePartitions(doc []byte) (*PartitionMap, error) {
	var raw partitionsDoc
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding partition document")
	}
	if len(raw.Partitions) == 0 {
		return nil, errors.New("partition document lists no partitions")
	}

	parts := make([]Partition, 0, len(raw.Partitions))
	for _, p := range raw.Partitions {
		if p.ID == "" {
			return nil, errors.New("partition with empty id")
		}
		part := Partition{
			ID:      p.ID,
			Regions: make(map[string]bool, len(p.Regions)),
			Outputs: PartitionOutputs{
				Name:                 p.Outputs.Name,
				DNSSuffix:            p.Outputs.DNSSuffix,
				DualStackDNSSuffix:   p.Outputs.DualStackDNSSuffix,
				SupportsFIPS:         p.Outputs.SupportsFIPS,
				SupportsDualStack:    p.Outputs.SupportsDualStack,
				ImplicitGlobalRegion: p.Outputs.ImplicitGlobalRegion,
			},
		}
		if part.Outputs.Name == "" {
			part.Outputs.Name = p.ID
		}
		if p.RegionRegex != "" {
			re, err := regexp.Compile(p.RegionRegex)
			if err != nil {
				return nil, errors.Wrapf(err, "partition %s region regex", p.ID)
			}
			part.RegionRegex = re
		}
		for _, r := range p.Regions {
			part.Regions[r] = true
		}
		parts = append(parts, part)
	}
	return NewPartitionMap(parts, parts[0].ID)
}

type partitionsDoc struct {
	Partitions []partitionDoc `yaml:"partitions"`
}

type partitionDoc struct {
	ID          string              `yaml:"id"`
	RegionRegex string              `yaml:"regionRegex"`
	Regions     []string            `yaml:"regions"`
	Outputs     partitionOutputsDoc `yaml:"outputs"`
}

type partitionOutputsDoc struct {
	Name                 string `yaml:"name"`
	DNSSuffix            string `yaml:"dnsSuffix"`
	DualStackDNSSuffix   string `yaml:"dualStackDnsSuffix"`
	SupportsFIPS         bool   `yaml:"supportsFIPS"`
	SupportsDualStack    bool   `yaml:"supportsDualStack"`
	ImplicitGlobalRegion string `yaml:"implicitGlobalRegion"`
}

// DefaultPartitions returns the built-in partition table. Deployments with
// a newer partition file can load it with ParsePartitions and register the
// result with NewPartitionFunc instead.
func DefaultPartitions() *PartitionMap {
	parts := []Partition{
		{
			ID:          "aws",
			RegionRegex: regexp.MustCompile(`^(us|eu|ap|sa|ca|me|af|il|mx)\-\w+\-\d+$`),
			Regions:     setOf("aws-global"),
			Outputs: PartitionOutputs{
				Name:                 "aws",
				DNSSuffix:            "amazonaws.com",
				DualStackDNSSuffix:   "api.aws",
				SupportsFIPS:         true,
				SupportsDualStack:    true,
				ImplicitGlobalRegion: "us-east-1",
			},
		},
		{
			ID:          "aws-cn",
			RegionRegex: regexp.MustCompile(`^cn\-\w+\-\d+$`),
			Regions:     setOf("aws-cn-global"),
			Outputs: PartitionOutputs{
				Name:                 "aws-cn",
				DNSSuffix:            "amazonaws.com.cn",
				DualStackDNSSuffix:   "api.amazonwebservices.com.cn",
				SupportsFIPS:         true,
				SupportsDualStack:    true,
				ImplicitGlobalRegion: "cn-northwest-1",
			},
		},
		{
			ID:          "aws-us-gov",
			RegionRegex: regexp.MustCompile(`^us\-gov\-\w+\-\d+$`),
			Regions:     setOf("aws-us-gov-global"),
			Outputs: PartitionOutputs{
				Name:                 "aws-us-gov",
				DNSSuffix:            "amazonaws.com",
				DualStackDNSSuffix:   "api.aws",
				SupportsFIPS:         true,
				SupportsDualStack:    true,
				ImplicitGlobalRegion: "us-gov-west-1",
			},
		},
		{
			ID:          "aws-iso",
			RegionRegex: regexp.MustCompile(`^us\-iso\-\w+\-\d+$`),
			Regions:     setOf("aws-iso-global"),
			Outputs: PartitionOutputs{
				Name:                 "aws-iso",
				DNSSuffix:            "c2s.ic.gov",
				DualStackDNSSuffix:   "c2s.ic.gov",
				SupportsFIPS:         true,
				SupportsDualStack:    false,
				ImplicitGlobalRegion: "us-iso-east-1",
			},
		},
		{
			ID:          "aws-iso-b",
			RegionRegex: regexp.MustCompile(`^us\-isob\-\w+\-\d+$`),
			Regions:     setOf("aws-iso-b-global"),
			Outputs: PartitionOutputs{
				Name:                 "aws-iso-b",
				DNSSuffix:            "sc2s.sgov.gov",
				DualStackDNSSuffix:   "sc2s.sgov.gov",
				SupportsFIPS:         true,
				SupportsDualStack:    false,
				ImplicitGlobalRegion: "us-isob-east-1",
			},
		},
	}
	pm, err := NewPartitionMap(parts, "aws")
	if err != nil {
		// The built-in table always contains its own fallback.
		panic(err)
	}
	return pm
}

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}
