package provider

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"go.uber.org/zap"

	"github.com/igorlabworks/terraform-provider-filesync/internal/remote"
)

var (
	_ provider.Provider = (*filesyncProvider)(nil)
)

// adapterFactory builds the adapter resources use. Tests swap it out.
type adapterFactory func(cfg *remote.Config, opts ...remote.Option) (remote.Adapter, error)

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &filesyncProvider{
			version:    version,
			newAdapter: remote.NewAdapter,
			logger:     newLogger(os.Stderr, os.Getenv("TF_LOG")),
		}
	}
}

type filesyncProvider struct {
	version    string
	newAdapter adapterFactory
	logger     *zap.Logger
}

// providerData is handed to every resource through Configure.
type providerData struct {
	config     *remote.Config
	newAdapter adapterFactory
	logger     *zap.Logger
}

// withAdapter opens an adapter for the duration of fn. Adapter logs and
// rsync output go to the provider logger.
func (d *providerData) withAdapter(fn func(remote.Adapter) error) (err error) {
	if d == nil {
		return errors.New("provider is not configured")
	}
	logger := d.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter, err := d.newAdapter(d.config,
		remote.WithLogger(logger),
		remote.WithOutput(zap.NewStdLog(logger.Named("rsync")).Writer()),
	)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, adapter.Close())
	}()
	return fn(adapter)
}

type filesyncProviderModel struct {
	Scheme         types.String  `tfsdk:"scheme"`
	Host           types.String  `tfsdk:"host"`
	Port           types.Int64   `tfsdk:"port"`
	User           types.String  `tfsdk:"user"`
	Password       types.String  `tfsdk:"password"`
	Passive        types.Bool    `tfsdk:"passive"`
	RsyncOptions   types.String  `tfsdk:"rsync_options"`
	KeyPath        types.String  `tfsdk:"key_path"`
	KnownHostsPath types.String  `tfsdk:"known_hosts_path"`
	IgnoreHostKey  types.Bool    `tfsdk:"ignore_host_key"`
	SSHConfigPath  types.String  `tfsdk:"ssh_config_path"`
	Implementation types.String  `tfsdk:"implementation"`
	Gateway        *gatewayModel `tfsdk:"gateway"`
}

type gatewayModel struct {
	Host     types.String `tfsdk:"host"`
	Port     types.Int64  `tfsdk:"port"`
	User     types.String `tfsdk:"user"`
	Password types.String `tfsdk:"password"`
	KeyPath  types.String `tfsdk:"key_path"`
}

func (p *filesyncProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "filesync"
	resp.Version = p.version
}

func (p *filesyncProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var config filesyncProviderModel

	diags := req.Config.Get(ctx, &config)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	remoteConfig := remoteConfigFromModel(config)
	if err := remoteConfig.Validate(); err != nil {
		resp.Diagnostics.AddError(
			"Invalid filesync provider configuration",
			fmt.Sprintf("Original Error: %s", err),
		)
		return
	}

	tflog.Debug(ctx, "Configured filesync provider", map[string]interface{}{
		"scheme":  remoteConfig.Scheme,
		"host":    remoteConfig.Host,
		"gateway": remoteConfig.Gateway != nil,
	})

	data := &providerData{config: remoteConfig, newAdapter: p.newAdapter, logger: p.logger}
	resp.ResourceData = data
	resp.DataSourceData = data
}

// remoteConfigFromModel converts provider attributes into a remote.Config.
// Null attributes become zero values so the remote package applies its
// own defaults.
func remoteConfigFromModel(m filesyncProviderModel) *remote.Config {
	cfg := &remote.Config{
		Scheme:         m.Scheme.ValueString(),
		Host:           m.Host.ValueString(),
		Port:           portString(m.Port),
		User:           m.User.ValueString(),
		Password:       m.Password.ValueString(),
		Passive:        m.Passive.ValueBool(),
		RsyncOptions:   m.RsyncOptions.ValueString(),
		KeyPath:        m.KeyPath.ValueString(),
		KnownHostsPath: m.KnownHostsPath.ValueString(),
		IgnoreHostKey:  m.IgnoreHostKey.ValueBool(),
		SSHConfigPath:  m.SSHConfigPath.ValueString(),
		Implementation: m.Implementation.ValueString(),
	}

	if m.Gateway != nil {
		cfg.Gateway = &remote.Config{
			Scheme:         remote.SchemeSSH,
			Host:           m.Gateway.Host.ValueString(),
			Port:           portString(m.Gateway.Port),
			User:           m.Gateway.User.ValueString(),
			Password:       m.Gateway.Password.ValueString(),
			KeyPath:        m.Gateway.KeyPath.ValueString(),
			KnownHostsPath: cfg.KnownHostsPath,
			IgnoreHostKey:  cfg.IgnoreHostKey,
			SSHConfigPath:  cfg.SSHConfigPath,
		}
	}
	return cfg
}

func portString(port types.Int64) string {
	if port.IsNull() || port.IsUnknown() {
		return ""
	}
	return strconv.FormatInt(port.ValueInt64(), 10)
}

func (p *filesyncProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{}
}

func (p *filesyncProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewFileResource,
		NewDirectoryResource,
	}
}

func (p *filesyncProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Provider for synchronizing files and directories with a remote host over SFTP, FTP or SSH+rsync.",
		Attributes: map[string]schema.Attribute{
			"scheme": schema.StringAttribute{
				Description: "Transport to use: `sftp`, `ftp` or `ssh`. " +
					"Directory resources need `ssh`, which runs rsync locally.",
				Required: true,
				Validators: []validator.String{
					stringvalidator.OneOf(remote.SchemeSFTP, remote.SchemeFTP, remote.SchemeSSH),
				},
			},
			"host": schema.StringAttribute{
				Description: "The hostname or IP address of the remote server.",
				Required:    true,
			},
			"port": schema.Int64Attribute{
				Description: "The port of the remote server. Defaults to 22 for `sftp` and 21 for `ftp`; " +
					"`ssh` leaves it to the ssh client.",
				Optional: true,
			},
			"user": schema.StringAttribute{
				Description: "The username to log in with.",
				Optional:    true,
			},
			"password": schema.StringAttribute{
				Description: "The password to log in with. With `ssh` it is only used for rsync, " +
					"through `sshpass`, and appears in the local process list while rsync runs.",
				Optional:  true,
				Sensitive: true,
			},
			"passive": schema.BoolAttribute{
				Description: "FTP only. Use plain PASV data connections instead of trying EPSV first.",
				Optional:    true,
			},
			"rsync_options": schema.StringAttribute{
				Description: "SSH only. Extra flags appended verbatim to every rsync command.",
				Optional:    true,
			},
			"key_path": schema.StringAttribute{
				Description: "The path to the SSH private key for authentication. " +
					"If not specified, the SSH agent, ~/.ssh/config and default keys are tried.",
				Optional: true,
			},
			"known_hosts_path": schema.StringAttribute{
				Description: "Path to the known_hosts file used to verify host keys. Defaults to ~/.ssh/known_hosts.",
				Optional:    true,
			},
			"ignore_host_key": schema.BoolAttribute{
				Description: "Skip host key verification. Only meant for testing.",
				Optional:    true,
			},
			"ssh_config_path": schema.StringAttribute{
				Description: "Path to an OpenSSH client config file. Defaults to ~/.ssh/config.",
				Optional:    true,
			},
			"implementation": schema.StringAttribute{
				Description: "SFTP only. Client library to use: `sftp` (default) or `rig`.",
				Optional:    true,
				Validators: []validator.String{
					stringvalidator.OneOf(remote.ImplementationSFTP, remote.ImplementationRig),
				},
			},
			"gateway": schema.SingleNestedAttribute{
				Description: "SSH only. Intermediate host the connection is tunneled through.",
				Optional:    true,
				Attributes: map[string]schema.Attribute{
					"host": schema.StringAttribute{
						Description: "The hostname or IP address of the gateway.",
						Required:    true,
					},
					"port": schema.Int64Attribute{
						Description: "The SSH port of the gateway.",
						Optional:    true,
					},
					"user": schema.StringAttribute{
						Description: "The username on the gateway.",
						Optional:    true,
					},
					"password": schema.StringAttribute{
						Description: "The gateway password, used for rsync through `sshpass`.",
						Optional:    true,
						Sensitive:   true,
					},
					"key_path": schema.StringAttribute{
						Description: "The path to the SSH private key for the gateway.",
						Optional:    true,
					},
				},
			},
		},
	}
}

type fileChecksums struct {
	md5Hex       string
	sha1Hex      string
	sha256Hex    string
	sha256Base64 string
	sha512Hex    string
	sha512Base64 string
}

func genFileChecksums(data []byte) fileChecksums {
	var checksums fileChecksums

	md5Sum := md5.Sum(data)
	checksums.md5Hex = hex.EncodeToString(md5Sum[:])

	sha1Sum := sha1.Sum(data)
	checksums.sha1Hex = hex.EncodeToString(sha1Sum[:])

	sha256Sum := sha256.Sum256(data)
	checksums.sha256Hex = hex.EncodeToString(sha256Sum[:])
	checksums.sha256Base64 = base64.StdEncoding.EncodeToString(sha256Sum[:])

	sha512Sum := sha512.Sum512(data)
	checksums.sha512Hex = hex.EncodeToString(sha512Sum[:])
	checksums.sha512Base64 = base64.StdEncoding.EncodeToString(sha512Sum[:])

	return checksums
}

// providerDataFrom extracts the provider data in a resource Configure call.
func providerDataFrom(data any, diags interface {
	AddError(summary, detail string)
}) *providerData {
	if data == nil {
		return nil
	}
	pd, ok := data.(*providerData)
	if !ok {
		diags.AddError(
			"Unexpected Resource Configure Type",
			fmt.Sprintf("Expected *providerData, got: %T. Please report this issue to the provider developers.", data),
		)
		return nil
	}
	return pd
}
