package sqlinline

const QSelectStoryByID = `--sql b3cdacf5-499c-4cf7-90df-843f19926fcc
select id, title, created_at
from stories
where id = $1::uuid
limit 1;
`

const QInsertStory = `--sql fa4fae29-92fd-4a08-b12b-c54f0617eb3e
insert into stories(id, title, created_at, updated_at)
values (gen_random_uuid(), $1::text, now(), now())
returning id;
`
