package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/types"
	r "github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igorlabworks/terraform-provider-filesync/internal/remote"
)

func TestResolveFileContent(t *testing.T) {
	source := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(source, []byte("local file content"), 0644))

	tests := []struct {
		name  string
		model fileResourceModel
		want  string
	}{
		{
			name: "content",
			model: fileResourceModel{
				Content:       types.StringValue("This is some content"),
				ContentBase64: types.StringNull(),
				Source:        types.StringNull(),
			},
			want: "This is some content",
		},
		{
			name: "base64",
			model: fileResourceModel{
				Content:       types.StringNull(),
				ContentBase64: types.StringValue("VGhpcyBpcyBzb21lIGJhc2U2NCBjb250ZW50"),
				Source:        types.StringNull(),
			},
			want: "This is some base64 content",
		},
		{
			name: "source",
			model: fileResourceModel{
				Content:       types.StringNull(),
				ContentBase64: types.StringNull(),
				Source:        types.StringValue(source),
			},
			want: "local file content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveFileContent(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := resolveFileContent(fileResourceModel{
		Content:       types.StringNull(),
		ContentBase64: types.StringValue("not base64!"),
		Source:        types.StringNull(),
	})
	assert.Error(t, err)
}

func TestFileResourceUploadDownload(t *testing.T) {
	fake := newFakeAdapter()
	res := &fileResource{data: testProviderData(fake)}

	require.NoError(t, res.upload([]byte("payload"), "/srv/www/index.html"))
	assert.Equal(t, []byte("payload"), fake.files["/srv/www/index.html"])

	got, err := res.download("/srv/www/index.html")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	_, err = res.download("/srv/www/missing.html")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "file does not exist"))

	assert.Equal(t, []string{
		"put /srv/www/index.html",
		"get /srv/www/index.html",
		"get /srv/www/missing.html",
	}, fake.calls)
	assert.Equal(t, 3, fake.closed, "one adapter per operation")
}

func TestFileResourceUnconfigured(t *testing.T) {
	res := &fileResource{}
	assert.Error(t, res.upload([]byte("payload"), "/tmp/x"))
}

func TestFileModelChecksums(t *testing.T) {
	var m fileResourceModel
	m.setChecksums([]byte("This is some content"))
	assert.Equal(t, "f3705a38abd5d2bd1f4fecda606d216216c536b1", m.ID.ValueString())
	assert.Equal(t, m.ID, m.ContentSha1)
	assert.Equal(t, "ee428920507e39e8d89c2cabe6641b67", m.ContentMd5.ValueString())
}

func TestAccFile_Basic(t *testing.T) {
	testAccPreCheck(t)

	config := getTestConfig(t, remote.SchemeSFTP)
	remotePath := "/config/test_upload/test_file_basic.txt"

	r.Test(t, r.TestCase{
		ProtoV5ProviderFactories: protoV5ProviderFactories(),
		Steps: []r.TestStep{
			{
				Config: testAccFileConfig(config, "content", "This is some content", remotePath),
				Check: r.ComposeTestCheckFunc(
					checkRemoteFileContent(config, remotePath, "This is some content"),
					r.TestCheckResourceAttr("filesync_file.test", "content_md5", "ee428920507e39e8d89c2cabe6641b67"),
					r.TestCheckResourceAttr("filesync_file.test", "id", "f3705a38abd5d2bd1f4fecda606d216216c536b1"),
				),
			},
			{
				Config: testAccFileConfig(config, "content_base64", "VGhpcyBpcyBzb21lIGJhc2U2NCBjb250ZW50", remotePath),
				Check:  checkRemoteFileContent(config, remotePath, "This is some base64 content"),
			},
		},
		CheckDestroy: checkRemoteFileDeleted(config, remotePath),
	})
}

func TestAccFile_Source(t *testing.T) {
	testAccPreCheck(t)

	config := getTestConfig(t, remote.SchemeSFTP)

	sourceFilePath := filepath.Join(t.TempDir(), "source_file.txt")
	sourceFilePath = strings.ReplaceAll(sourceFilePath, `\`, `\\`)
	if err := os.WriteFile(sourceFilePath, []byte("local file content"), 0644); err != nil {
		t.Fatal(err)
	}

	remotePath := "/config/test_upload/test_file_source.txt"

	r.Test(t, r.TestCase{
		ProtoV5ProviderFactories: protoV5ProviderFactories(),
		Steps: []r.TestStep{
			{
				Config: testAccFileConfig(config, "source", sourceFilePath, remotePath),
				Check:  checkRemoteFileContent(config, remotePath, "local file content"),
			},
		},
		CheckDestroy: checkRemoteFileDeleted(config, remotePath),
	})
}

func TestAccFile_SSHScheme(t *testing.T) {
	testAccPreCheck(t)

	config := getTestConfig(t, remote.SchemeSSH)
	if config.KeyPath == "" {
		// ssh sessions authenticate with keys; the password only feeds sshpass.
		t.Skip("TEST_SSH_KEY_PATH is required for the ssh scheme")
	}
	remotePath := "/config/test_upload/test_file_ssh.txt"

	r.Test(t, r.TestCase{
		ProtoV5ProviderFactories: protoV5ProviderFactories(),
		Steps: []r.TestStep{
			{
				Config: testAccFileConfig(config, "content", "over ssh", remotePath),
				Check:  checkRemoteFileContent(config, remotePath, "over ssh"),
			},
		},
		CheckDestroy: checkRemoteFileDeleted(config, remotePath),
	})
}

func TestAccFile_Validators(t *testing.T) {
	testAccPreCheck(t)

	config := getTestConfig(t, remote.SchemeSFTP)
	remotePath := "/config/test_upload/test_file_validators.txt"

	r.Test(t, r.TestCase{
		ProtoV5ProviderFactories: protoV5ProviderFactories(),
		Steps: []r.TestStep{
			{
				Config: testAccProviderBlock(config) + fmt.Sprintf(`
				resource "filesync_file" "file" {
				  destination = %q
				}`, remotePath),
				ExpectError: regexp.MustCompile(`.*Error: Invalid Attribute Combination`),
			},
			{
				Config: testAccProviderBlock(config) + fmt.Sprintf(`
				resource "filesync_file" "file" {
				  content        = "content"
				  content_base64 = "Y29udGVudA=="
				  destination    = %q
				}`, remotePath),
				ExpectError: regexp.MustCompile(`.*Error: Invalid Attribute Combination`),
			},
		},
	})
}

func TestAccFile_DriftDetection(t *testing.T) {
	testAccPreCheck(t)

	config := getTestConfig(t, remote.SchemeSFTP)
	remotePath := "/config/test_upload/test_file_drift.txt"

	r.Test(t, r.TestCase{
		ProtoV5ProviderFactories: protoV5ProviderFactories(),
		Steps: []r.TestStep{
			{
				Config: testAccFileConfig(config, "content", "Initial content", remotePath),
				Check:  checkRemoteFileContent(config, remotePath, "Initial content"),
			},
			{
				// The remote copy is changed behind terraform's back; the
				// next apply recreates it.
				PreConfig: func() {
					if err := writeRemoteFile(config, remotePath, []byte("Modified externally")); err != nil {
						t.Fatalf("Failed to modify remote file: %s", err)
					}
				},
				Config: testAccFileConfig(config, "content", "Initial content", remotePath),
				Check:  checkRemoteFileContent(config, remotePath, "Initial content"),
			},
		},
		CheckDestroy: checkRemoteFileDeleted(config, remotePath),
	})
}

func testAccFileConfig(config *remote.Config, attribute, value, destination string) string {
	return testAccProviderBlock(config) + fmt.Sprintf(`
		resource "filesync_file" "test" {
		  %[1]s = %[2]q
		  destination = %[3]q
		}`, attribute, value, destination)
}
