package provider

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/booldefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringdefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/igorlabworks/terraform-provider-filesync/internal/remote"
)

const (
	directionPut = "put"
	directionGet = "get"
)

var (
	_ resource.Resource              = (*directoryResource)(nil)
	_ resource.ResourceWithConfigure = (*directoryResource)(nil)
)

func NewDirectoryResource() resource.Resource {
	return &directoryResource{}
}

type directoryResource struct {
	data *providerData
}

type directoryResourceModel struct {
	ID              types.String `tfsdk:"id"`
	Source          types.String `tfsdk:"source"`
	Destination     types.String `tfsdk:"destination"`
	Direction       types.String `tfsdk:"direction"`
	Exclude         types.List   `tfsdk:"exclude"`
	Include         types.List   `tfsdk:"include"`
	DeleteOnDestroy types.Bool   `tfsdk:"delete_on_destroy"`
}

func (r *directoryResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	if data := providerDataFrom(req.ProviderData, &resp.Diagnostics); data != nil {
		r.data = data
	}
}

func (r *directoryResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_directory"
}

func (r *directoryResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Synchronizes a directory tree with the remote host using rsync over ssh.\n " +
			"Requires the provider `scheme` to be `ssh` and `rsync` to be installed locally.",
		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Description: "The synchronized path, prefixed with the direction.",
				Computed:    true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"source": schema.StringAttribute{
				Description: "Directory to copy from: a local path for `put`, a remote path for `get`.",
				Required:    true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"destination": schema.StringAttribute{
				Description: "Directory to copy into: a remote path for `put`, a local path for `get`.\n " +
					"Files missing from the source are deleted from the destination.",
				Required: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"direction": schema.StringAttribute{
				Description: "`put` uploads the local source, `get` downloads the remote source. Default is `put`.",
				Optional:    true,
				Computed:    true,
				Default:     stringdefault.StaticString(directionPut),
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.OneOf(directionPut, directionGet),
				},
			},
			"exclude": schema.ListAttribute{
				Description: "rsync exclude patterns, applied in order after every include pattern.",
				ElementType: types.StringType,
				Optional:    true,
			},
			"include": schema.ListAttribute{
				Description: "rsync include patterns, applied in order before any exclude pattern.",
				ElementType: types.StringType,
				Optional:    true,
			},
			"delete_on_destroy": schema.BoolAttribute{
				Description: "Remove the remote destination with `rm -rf` when the resource is destroyed.\n " +
					"Only applies to `put`. Default is `false`.",
				Optional: true,
				Computed: true,
				Default:  booldefault.StaticBool(false),
			},
		},
	}
}

func (r *directoryResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var plan directoryResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	r.sync(ctx, &plan, &resp.Diagnostics, "Create directory error")
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *directoryResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	// rsync converges on every apply; there is nothing cheaper to compare
	// against, so state is kept as is.
	var state directoryResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
}

func (r *directoryResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var plan directoryResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	r.sync(ctx, &plan, &resp.Diagnostics, "Update directory error")
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *directoryResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var state directoryResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if err := r.destroy(state); err != nil {
		resp.Diagnostics.AddError(
			"Delete directory error",
			"An unexpected error occurred while deleting the remote directory\n\n"+
				fmt.Sprintf("Original Error: %s", err),
		)
	}
}

// destroy removes the remote copy of a put directory when asked to. Local
// destinations of get are never removed.
func (r *directoryResource) destroy(state directoryResourceModel) error {
	if !state.DeleteOnDestroy.ValueBool() || state.Direction.ValueString() != directionPut {
		return nil
	}
	return r.data.withAdapter(func(a remote.Adapter) error {
		return a.Delete(state.Destination.ValueString())
	})
}

func (r *directoryResource) sync(ctx context.Context, plan *directoryResourceModel, diags *diag.Diagnostics, summary string) {
	var exclude, include []string
	diags.Append(stringList(ctx, plan.Exclude, &exclude)...)
	diags.Append(stringList(ctx, plan.Include, &include)...)
	if diags.HasError() {
		return
	}

	source := plan.Source.ValueString()
	destination := plan.Destination.ValueString()
	direction := plan.Direction.ValueString()

	tflog.Debug(ctx, "Synchronizing directory", map[string]interface{}{
		"direction":   direction,
		"source":      source,
		"destination": destination,
		"exclude":     exclude,
		"include":     include,
	})

	err := r.data.withAdapter(func(a remote.Adapter) error {
		if direction == directionGet {
			return a.GetDirectory(source, destination, exclude, include)
		}
		return a.PutDirectory(source, destination, exclude, include)
	})
	if err != nil {
		detail := "An unexpected error occurred while synchronizing the directory\n\n"
		if errors.Is(err, remote.ErrUnsupported) {
			detail = "Directory synchronization needs the provider scheme to be \"ssh\"\n\n"
		}
		diags.AddError(summary, detail+fmt.Sprintf("Original Error: %s", err))
		return
	}

	plan.ID = types.StringValue(direction + ":" + destination)
}

func stringList(ctx context.Context, list types.List, target *[]string) diag.Diagnostics {
	if list.IsNull() || list.IsUnknown() {
		return nil
	}
	return list.ElementsAs(ctx, target, false)
}
