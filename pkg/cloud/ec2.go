// pkg/cloud/ec2.go

package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/smuckster/fleetcheck/pkg/remediate"
)

// EC2API is the subset of the EC2 client used by EC2Provider
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	ModifyVolume(ctx context.Context, params *ec2.ModifyVolumeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyVolumeOutput, error)
	DescribeVolumesModifications(ctx context.Context, params *ec2.DescribeVolumesModificationsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesModificationsOutput, error)
}

// EC2Provider implements remediate.VolumeProvider on EBS
type EC2Provider struct {
	client EC2API
	logger *slog.Logger
}

var _ remediate.VolumeProvider = (*EC2Provider)(nil)

// NewEC2Provider creates a provider from the default AWS credential chain.
// An empty region falls back to the environment and shared config.
func NewEC2Provider(ctx context.Context, region string, logger *slog.Logger) (*EC2Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewEC2ProviderWithClient(ec2.NewFromConfig(cfg), logger), nil
}

// NewEC2ProviderWithClient creates a provider around an existing client
func NewEC2ProviderWithClient(client EC2API, logger *slog.Logger) *EC2Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &EC2Provider{client: client, logger: logger}
}

// FindVolumeByAddress returns the root EBS volume of the instance with the
// given private or public IP address
func (p *EC2Provider) FindVolumeByAddress(ctx context.Context, address string) (remediate.Volume, error) {
	instance, err := p.findInstance(ctx, address)
	if err != nil {
		return remediate.Volume{}, err
	}

	volumeID := rootVolumeID(instance)
	if volumeID == "" {
		return remediate.Volume{}, fmt.Errorf("instance %s has no EBS root volume: %w",
			aws.ToString(instance.InstanceId), remediate.ErrVolumeNotFound)
	}

	out, err := p.client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{volumeID}})
	if err != nil {
		return remediate.Volume{}, fmt.Errorf("failed to describe volume %s: %w", volumeID, err)
	}
	if len(out.Volumes) == 0 {
		return remediate.Volume{}, fmt.Errorf("volume %s: %w", volumeID, remediate.ErrVolumeNotFound)
	}

	volume := remediate.Volume{ID: volumeID, SizeGB: int(aws.ToInt32(out.Volumes[0].Size))}
	p.logger.Debug("found EBS volume", "address", address,
		"instance", aws.ToString(instance.InstanceId), "volume", volume.ID, "size_gb", volume.SizeGB)
	return volume, nil
}

func (p *EC2Provider) findInstance(ctx context.Context, address string) (types.Instance, error) {
	for _, filter := range []string{"private-ip-address", "ip-address"} {
		out, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			Filters: []types.Filter{{Name: aws.String(filter), Values: []string{address}}},
		})
		if err != nil {
			return types.Instance{}, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range out.Reservations {
			if len(reservation.Instances) > 0 {
				return reservation.Instances[0], nil
			}
		}
	}
	return types.Instance{}, fmt.Errorf("no instance with address %s: %w", address, remediate.ErrVolumeNotFound)
}

func rootVolumeID(instance types.Instance) string {
	rootDevice := aws.ToString(instance.RootDeviceName)
	var first string
	for _, mapping := range instance.BlockDeviceMappings {
		if mapping.Ebs == nil {
			continue
		}
		id := aws.ToString(mapping.Ebs.VolumeId)
		if aws.ToString(mapping.DeviceName) == rootDevice {
			return id
		}
		if first == "" {
			first = id
		}
	}
	return first
}

// ResizeVolume requests a new size for the volume
func (p *EC2Provider) ResizeVolume(ctx context.Context, volumeID string, newSizeGB int) error {
	_, err := p.client.ModifyVolume(ctx, &ec2.ModifyVolumeInput{
		VolumeId: aws.String(volumeID),
		Size:     aws.Int32(int32(newSizeGB)),
	})
	if err != nil {
		return fmt.Errorf("failed to modify volume %s: %w", volumeID, err)
	}
	return nil
}

// ResizeState reports the latest modification of the volume. The new size
// is usable once the modification is optimizing or completed.
func (p *EC2Provider) ResizeState(ctx context.Context, volumeID string) (remediate.ResizeState, error) {
	out, err := p.client.DescribeVolumesModifications(ctx, &ec2.DescribeVolumesModificationsInput{
		VolumeIds: []string{volumeID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe modifications of %s: %w", volumeID, err)
	}
	if len(out.VolumesModifications) == 0 {
		return remediate.ResizePending, nil
	}

	latest := out.VolumesModifications[0]
	for _, mod := range out.VolumesModifications[1:] {
		if mod.StartTime != nil && (latest.StartTime == nil || mod.StartTime.After(*latest.StartTime)) {
			latest = mod
		}
	}

	switch latest.ModificationState {
	case types.VolumeModificationStateOptimizing, types.VolumeModificationStateCompleted:
		return remediate.ResizeReady, nil
	case types.VolumeModificationStateFailed:
		return remediate.ResizeFailed, nil
	default:
		return remediate.ResizePending, nil
	}
}
