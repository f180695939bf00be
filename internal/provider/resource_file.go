package provider

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/igorlabworks/terraform-provider-filesync/internal/remote"
)

var (
	_ resource.Resource              = (*fileResource)(nil)
	_ resource.ResourceWithConfigure = (*fileResource)(nil)
)

func NewFileResource() resource.Resource {
	return &fileResource{}
}

type fileResource struct {
	data *providerData
}

func (r *fileResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	if data := providerDataFrom(req.ProviderData, &resp.Diagnostics); data != nil {
		r.data = data
	}
}

func (r *fileResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Uploads a single file to the remote host with the given content.",
		Attributes: map[string]schema.Attribute{
			"destination": schema.StringAttribute{
				Description: "The path of the file on the remote host.\n " +
					"If the file already exists, it will be overridden with the given content.",
				Required: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"content": schema.StringAttribute{
				Description: "Content to store in the file, expected to be a UTF-8 encoded string.\n " +
					"Conflicts with `content_base64` and `source`.\n " +
					"Exactly one of these three arguments must be specified.",
				Optional: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.ExactlyOneOf(
						path.MatchRoot("content_base64"),
						path.MatchRoot("source")),
				},
			},
			"content_base64": schema.StringAttribute{
				Description: "Content to store in the file, expected to be binary encoded as base64 string.\n " +
					"Conflicts with `content` and `source`.\n " +
					"Exactly one of these three arguments must be specified.",
				Optional: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.ExactlyOneOf(
						path.MatchRoot("content"),
						path.MatchRoot("source")),
				},
			},
			"source": schema.StringAttribute{
				Description: "Path to a local file to use as source for the remote file.\n " +
					"Conflicts with `content` and `content_base64`.\n " +
					"Exactly one of these three arguments must be specified.",
				Optional: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.ExactlyOneOf(
						path.MatchRoot("content"),
						path.MatchRoot("content_base64")),
				},
			},
			"id": schema.StringAttribute{
				Description: "The hexadecimal encoding of the SHA1 checksum of the file content.",
				Computed:    true,
			},
			"content_md5": schema.StringAttribute{
				Description: "MD5 checksum of file content.",
				Computed:    true,
			},
			"content_sha1": schema.StringAttribute{
				Description: "SHA1 checksum of file content.",
				Computed:    true,
			},
			"content_sha256": schema.StringAttribute{
				Description: "SHA256 checksum of file content.",
				Computed:    true,
			},
			"content_base64sha256": schema.StringAttribute{
				Description: "Base64 encoded SHA256 checksum of file content.",
				Computed:    true,
			},
			"content_sha512": schema.StringAttribute{
				Description: "SHA512 checksum of file content.",
				Computed:    true,
			},
			"content_base64sha512": schema.StringAttribute{
				Description: "Base64 encoded SHA512 checksum of file content.",
				Computed:    true,
			},
		},
	}
}

func (r *fileResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_file"
}

func (r *fileResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var plan fileResourceModel

	diags := req.Plan.Get(ctx, &plan)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	content, err := resolveFileContent(plan)
	if err != nil {
		resp.Diagnostics.AddError(
			"Create file error",
			"An unexpected error occurred while parsing file content\n\n"+
				fmt.Sprintf("Original Error: %s", err),
		)
		return
	}

	tflog.Debug(ctx, "Uploading file", map[string]interface{}{
		"destination": plan.Destination.ValueString(),
		"size":        len(content),
	})

	if err := r.upload(content, plan.Destination.ValueString()); err != nil {
		resp.Diagnostics.AddError(
			"Create file error",
			"An unexpected error occurred while writing the remote file\n\n"+
				fmt.Sprintf("Original Error: %s", err),
		)
		return
	}

	plan.setChecksums(content)
	diags = resp.State.Set(ctx, &plan)
	resp.Diagnostics.Append(diags...)
}

func (r *fileResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var state fileResourceModel

	diags := req.State.Get(ctx, &state)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	content, err := r.download(state.Destination.ValueString())
	if err != nil {
		tflog.Debug(ctx, "Remote file unreadable, removing from state", map[string]interface{}{
			"destination": state.Destination.ValueString(),
			"error":       err.Error(),
		})
		resp.State.RemoveResource(ctx)
		return
	}

	checksum := sha1.Sum(content)
	if hex.EncodeToString(checksum[:]) != state.ID.ValueString() {
		resp.State.RemoveResource(ctx)
		return
	}
}

func (r *fileResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	// Every input forces replacement, so only computed values can differ here.
	var plan fileResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *fileResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var destination string
	resp.Diagnostics.Append(req.State.GetAttribute(ctx, path.Root("destination"), &destination)...)
	if resp.Diagnostics.HasError() {
		return
	}

	err := r.data.withAdapter(func(a remote.Adapter) error {
		return a.Delete(destination)
	})
	if err != nil {
		resp.Diagnostics.AddError(
			"Delete file error",
			"An unexpected error occurred while deleting the remote file\n\n"+
				fmt.Sprintf("Original Error: %s", err),
		)
		return
	}
}

func (r *fileResource) upload(content []byte, destination string) error {
	staging, err := os.MkdirTemp("", "filesync-upload-")
	if err != nil {
		return errors.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging)

	local := filepath.Join(staging, filepath.Base(destination))
	if err := os.WriteFile(local, content, 0644); err != nil {
		return errors.Wrap(err, "failed to stage file content")
	}

	return r.data.withAdapter(func(a remote.Adapter) error {
		return a.PutFile(local, destination)
	})
}

func (r *fileResource) download(destination string) ([]byte, error) {
	staging, err := os.MkdirTemp("", "filesync-download-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging)

	local := filepath.Join(staging, "content")
	err = r.data.withAdapter(func(a remote.Adapter) error {
		return a.Get(destination, local)
	})
	if err != nil {
		return nil, err
	}
	return os.ReadFile(local)
}

func resolveFileContent(plan fileResourceModel) ([]byte, error) {
	if !plan.ContentBase64.IsNull() {
		return base64.StdEncoding.DecodeString(plan.ContentBase64.ValueString())
	}
	if !plan.Source.IsNull() {
		return os.ReadFile(plan.Source.ValueString())
	}
	return []byte(plan.Content.ValueString()), nil
}

type fileResourceModel struct {
	Destination         types.String `tfsdk:"destination"`
	Content             types.String `tfsdk:"content"`
	ContentBase64       types.String `tfsdk:"content_base64"`
	Source              types.String `tfsdk:"source"`
	ID                  types.String `tfsdk:"id"`
	ContentMd5          types.String `tfsdk:"content_md5"`
	ContentSha1         types.String `tfsdk:"content_sha1"`
	ContentSha256       types.String `tfsdk:"content_sha256"`
	ContentBase64sha256 types.String `tfsdk:"content_base64sha256"`
	ContentSha512       types.String `tfsdk:"content_sha512"`
	ContentBase64sha512 types.String `tfsdk:"content_base64sha512"`
}

func (m *fileResourceModel) setChecksums(content []byte) {
	checksums := genFileChecksums(content)
	m.ContentMd5 = types.StringValue(checksums.md5Hex)
	m.ContentSha1 = types.StringValue(checksums.sha1Hex)
	m.ContentSha256 = types.StringValue(checksums.sha256Hex)
	m.ContentBase64sha256 = types.StringValue(checksums.sha256Base64)
	m.ContentSha512 = types.StringValue(checksums.sha512Hex)
	m.ContentBase64sha512 = types.StringValue(checksums.sha512Base64)
	m.ID = types.StringValue(checksums.sha1Hex)
}
