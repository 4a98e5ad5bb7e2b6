package sqlinline

const QEnsureCampaignSchema = `--sql 30035ae5-cc64-48c8-80b7-98a8f668caf1
create table if not exists campaigns (
  id uuid primary key,
  owner_id text not null,
  status text not null default 'draft',
  metadata jsonb not null default '{}'::jsonb,
  scene_assets jsonb not null default '{}'::jsonb,
  video jsonb,
  idempotency_key text,
  created_at timestamptz not null,
  updated_at timestamptz not null
);
create unique index if not exists campaigns_owner_idempotency_uq
  on campaigns(owner_id, idempotency_key)
  where idempotency_key is not null;
create index if not exists campaigns_owner_created_idx
  on campaigns(owner_id, created_at desc);
`

const QInsertCampaign = `--sql f7c41b00-f3b2-4981-96ca-29ced59a70ec
insert into campaigns(
  id,
  owner_id,
  status,
  metadata,
  scene_assets,
  video,
  idempotency_key,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::jsonb,
  '{}'::jsonb,
  null,
  nullif($5::text, ''),
  $6::timestamptz,
  $6::timestamptz
)
on conflict (owner_id, idempotency_key) where idempotency_key is not null do nothing
returning id::text, owner_id, status, metadata, scene_assets, video, coalesce(idempotency_key, ''), created_at, updated_at;
`

const QSelectCampaignByIdempotencyKey = `--sql 3959d794-108f-453a-a552-210587abd9e5
select id::text, owner_id, status, metadata, scene_assets, video, coalesce(idempotency_key, ''), created_at, updated_at
from campaigns
where owner_id = $1::text and idempotency_key = $2::text
limit 1;
`

const QSelectCampaignByID = `--sql adf1463b-b1ed-41b9-8b51-a8277d5dc6b5
select id::text, owner_id, status, metadata, scene_assets, video, coalesce(idempotency_key, ''), created_at, updated_at
from campaigns
where id = $1::uuid
limit 1;
`

// QMergeCampaignSceneAssets relies on jsonb || replacing only the top-level
// keys present in $2, so concurrent merges of distinct scenes both survive.
const QMergeCampaignSceneAssets = `--sql f8b26873-8efa-4223-b15b-9604c5fcb014
update campaigns
set scene_assets = scene_assets || $2::jsonb,
    updated_at = $3::timestamptz
where id = $1::uuid;
`

const QSetCampaignVideo = `--sql b1592155-8da4-4e8c-9ccc-165b0538d80e
update campaigns
set video = $2::jsonb,
    updated_at = $3::timestamptz
where id = $1::uuid;
`

const QListCampaignsByOwner = `--sql 5fd3566d-ec85-46a3-9ffc-82667b635c1e
select id::text, owner_id, status, metadata, scene_assets, video, coalesce(idempotency_key, ''), created_at, updated_at
from campaigns
where owner_id = $1::text
  and ($2::text = '' or status = $2::text)
order by created_at desc, id desc
limit $3::int;
`
