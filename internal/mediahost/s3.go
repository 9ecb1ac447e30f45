package mediahost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ProviderS3 はS3互換ストレージに保存したメディアのprovider名。
const ProviderS3 = "s3"

// publicReadPrefix は匿名の読み取りを許可するオブジェクトキーのプレフィックス。
const publicReadPrefix = "articles/"

// S3Config はS3互換ストレージへの接続設定。
type S3Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Bucket        string
	PublicBaseURL string
}

// objectClient はS3Hostが使用するminio.Clientのメソッド。
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Host はminio-goでS3互換ストレージにメディアを保存するHost実装。
type S3Host struct {
	client        objectClient
	bucket        string
	publicBaseURL string

	ensureOnce sync.Once
	ensureErr  error
}

var _ Host = (*S3Host)(nil)

// NewS3Host はS3Configからminioクライアントを生成してS3Hostを返す。
func NewS3Host(cfg S3Config) (*S3Host, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return newS3Host(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3Host(client objectClient, bucket, publicBaseURL string) *S3Host {
	return &S3Host{
		client:        client,
		bucket:        strings.TrimSpace(bucket),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// EnsureBucket はバケットが存在しなければ作成する。プロセス内で1回だけ実行される。
// 作成時はarticles/配下の匿名GETを許可するポリシーを設定し、保存したURLをそのまま配信できるようにする。
// 既存バケットのポリシーは変更しない。
func (h *S3Host) EnsureBucket(ctx context.Context) error {
	if h.bucket == "" {
		return errors.New("s3 bucket is empty")
	}

	h.ensureOnce.Do(func() {
		exists, err := h.client.BucketExists(ctx, h.bucket)
		if err != nil {
			h.ensureErr = err
			return
		}
		if exists {
			return
		}
		if err := h.client.MakeBucket(ctx, h.bucket, minio.MakeBucketOptions{}); err != nil {
			h.ensureErr = err
			return
		}
		policy, err := publicReadPolicy(h.bucket, publicReadPrefix)
		if err != nil {
			h.ensureErr = err
			return
		}
		if err := h.client.SetBucketPolicy(ctx, h.bucket, policy); err != nil {
			h.ensureErr = fmt.Errorf("set bucket policy: %w", err)
		}
	})

	if h.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", h.bucket, h.ensureErr)
	}
	return nil
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy はprefix配下のオブジェクトへの匿名GetObjectを許可するバケットポリシーを返す。
func publicReadPolicy(bucket, prefix string) (string, error) {
	b, err := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/" + prefix + "*"},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal bucket policy: %w", err)
	}
	return string(b), nil
}

// Upload は先頭バイトから種別とサイズを判定したうえでオブジェクトを保存する。
// オブジェクトキーは folder/<uuid><拡張子> となる。
func (h *S3Host) Upload(ctx context.Context, folder, fileName string, body io.Reader, size int64) (*UploadResult, error) {
	if body == nil || size == 0 {
		return nil, errors.New("empty upload body")
	}

	head := make([]byte, headSize)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload head: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, errors.New("empty upload body")
	}

	ins := Inspect(head)
	key := objectKey(folder, fileName)

	_, err = h.client.PutObject(ctx, h.bucket, key, io.MultiReader(bytes.NewReader(head), body), size, minio.PutObjectOptions{
		ContentType: ins.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object to s3: %w", err)
	}

	return &UploadResult{
		URL:          h.publicBaseURL + "/" + key,
		PublicID:     key,
		ResourceType: ins.ResourceType,
		ContentType:  ins.ContentType,
		Width:        ins.Width,
		Height:       ins.Height,
	}, nil
}

// Delete はオブジェクトを削除する。
func (h *S3Host) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if err := h.client.RemoveObject(ctx, h.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Provider はproviderカラムに記録する名前を返す。
func (h *S3Host) Provider() string {
	return ProviderS3
}

func objectKey(folder, fileName string) string {
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+safeExt(fileName))
}

// safeExt は英数字のみからなる拡張子を小文字で返す。それ以外は空文字列。
func safeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(path.Base(filepath.ToSlash(fileName))))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
